// Package middleware содержит HTTP middleware административного API.
package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"
)

// AdminKeyHeader передаёт общий секрет администратора.
const AdminKeyHeader = "X-Admin-Key"

const adminKeyQuery = "key"

// AdminAuth пропускает только запросы с верным общим секретом.
type AdminAuth struct {
	digest [sha256.Size]byte
	empty  bool
}

// NewAdminAuth создаёт middleware с указанным секретом. Пустой секрет запрещает любой доступ.
func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{
		digest: sha256.Sum256([]byte(secret)),
		empty:  secret == "",
	}
}

// Middleware проверяет секрет из заголовка X-Admin-Key или параметра key.
func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Check(presentedKey(r)) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Check сравнивает ключ с секретом за постоянное время.
func (a *AdminAuth) Check(key string) bool {
	if a.empty || key == "" {
		return false
	}
	got := sha256.Sum256([]byte(key))
	return hmac.Equal(got[:], a.digest[:])
}

func presentedKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(AdminKeyHeader)); key != "" {
		return key
	}
	return r.URL.Query().Get(adminKeyQuery)
}
