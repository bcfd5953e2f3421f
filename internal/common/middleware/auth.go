package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"merge-verse-backend/internal/common/config"
)

// Context keys для данных, извлеченных из Telegram init-data.
const (
	UserCtxParam       = "user"
	UserIDCtxParam     = "user_id"
	StartParamCtxParam = "start_param"
)

// BanChecker проверяет статус блокировки пользователя
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// TelegramAuth валидирует Telegram Mini App init-data из заголовка "init_data"
// и кладет разобранного пользователя в контекст запроса.
func TelegramAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("init_data")
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
			return
		}

		// Проверка срока действия отключена: мини-апп может держать сессию открытой долго
		if err := initdata.Validate(raw, cfg.Telegram.BotToken, time.Duration(0)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid init data"})
			return
		}

		parsed, err := initdata.Parse(raw)
		if err != nil || parsed.User.ID == 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid init data format"})
			return
		}

		c.Set(UserCtxParam, parsed.User)
		c.Set(UserIDCtxParam, parsed.User.ID)
		c.Set(StartParamCtxParam, parsed.StartParam)
		c.Next()
	}
}

// GetUserID достает ID пользователя, положенный TelegramAuth
func GetUserID(c *gin.Context) (int64, bool) {
	v, exists := c.Get(UserIDCtxParam)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// GetStartParam достает start-параметр из init-data
func GetStartParam(c *gin.Context) string {
	v, exists := c.Get(StartParamCtxParam)
	if !exists {
		return ""
	}
	s, _ := v.(string)
	return s
}

// GetTelegramUser достает данные пользователя Telegram из контекста
func GetTelegramUser(c *gin.Context) (initdata.User, bool) {
	v, exists := c.Get(UserCtxParam)
	if !exists {
		return initdata.User{}, false
	}
	u, ok := v.(initdata.User)
	return u, ok
}

// RequireAdmin пускает только пользователей из списка администраторов
func RequireAdmin(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Telegram Init Data required"})
			return
		}

		if !cfg.IsAdmin(userID) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Next()
	}
}

// CheckBanned блокирует забаненных пользователей; администраторов пропускает
func CheckBanned(cfg *config.Config, users BanChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			c.Next()
			return
		}

		if cfg.IsAdmin(userID) {
			c.Next()
			return
		}

		banned, err := users.IsBanned(c.Request.Context(), userID)
		if err == nil && banned {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Your account has been banned"})
			return
		}

		c.Next()
	}
}
