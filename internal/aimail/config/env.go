// Чтение переменных окружения для конфигурации композера.
package config

import (
	"os"
	"strconv"
)

// Exist - возвращает true, если переменная окружения key задана.
func Exist(key string) bool {
	_, exist := os.LookupEnv(key)
	return exist
}

// GetEnv - возвращает строковое значение переменной окружения.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetIntEnv - возвращает числовое значение переменной окружения.
// Незаданное или неразбираемое значение дает 0.
func GetIntEnv(key string) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return 0
	}
	return v
}

// GetBoolEnv - возвращает логическое значение переменной окружения.
// Незаданное или неразбираемое значение дает false.
func GetBoolEnv(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return false
	}
	return v
}
