// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"net/url"
	"strconv"
	"strings"
	"unicode"
)

var (
	ErrEmpty       = errors.New("empty value")
	ErrNotANumber  = errors.New("not a whole number")
	ErrNotPositive = errors.New("must be positive")
)

// IsDigits проверяет, что строка непуста и состоит только из цифр.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if !unicode.IsDigit(ch) {
			return false
		}
	}
	return true
}

// ParsePositiveInt разбирает целое положительное число: сумму вывода, id задания или заявки.
func ParsePositiveInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmpty
	}
	if !IsDigits(s) {
		return 0, ErrNotANumber
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrNotANumber
	}
	if n <= 0 {
		return 0, ErrNotPositive
	}
	return n, nil
}

// ParseReferrer разбирает аргумент /start. Пустой или нечисловой аргумент означает
// отсутствие пригласившего.
func ParseReferrer(arg string) *int64 {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil
	}
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n == 0 {
		return nil
	}
	return &n
}

// IsValidLink допускает пустую ссылку, заглушку "#" и абсолютные http(s) URL.
func IsValidLink(link string) bool {
	link = strings.TrimSpace(link)
	if link == "" || link == "#" {
		return true
	}
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
