package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"
)

// lockedSource сериализует доступ к источнику: общий *rand.Rand
// используется хендлерами и воркерами из разных горутин.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// NewSeededRand создает потокобезопасный math/rand генератор, засеянный
// из crypto/rand. Сервисы принимают *rand.Rand, что позволяет фиксировать
// seed в тестах.
func NewSeededRand() *rand.Rand {
	var seed [8]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic(err)
	}
	src := rand.NewSource(int64(binary.LittleEndian.Uint64(seed[:])))
	return rand.New(&lockedSource{src: src.(rand.Source64)})
}

// Shuffle performs a Fisher-Yates shuffle of the slice.
func Shuffle[T any](r *rand.Rand, slice []T) {
	for i := len(slice) - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		slice[i], slice[j] = slice[j], slice[i]
	}
}

// PickN returns n distinct elements chosen by a partial Fisher-Yates pass.
// When n exceeds the slice length, all elements are returned.
func PickN[T any](r *rand.Rand, slice []T, n int) []T {
	pool := make([]T, len(slice))
	copy(pool, slice)

	if n >= len(pool) {
		Shuffle(r, pool)
		return pool
	}

	for i := 0; i < n; i++ {
		j := i + r.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}
