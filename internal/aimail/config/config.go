// Управление конфигурацией приложения из переменных окружения.
// Содержит структуру Config для хранения параметров и функцию ReadConfig для их загрузки из переменных окружения.
//
// Основные возможности:
//   - Загрузка конфигурации из переменных окружения с использованием тегов struct.
//   - Валидация обязательных переменных.
//   - Преобразование типов данных из переменных окружения (string, int, bool).
//   - Маскировка секретных значений (passwords) в логах.
//   - Значения по умолчанию и ограничение диапазонов числовых параметров.
package config

import (
	"log/slog"
	"net/url"
	"os"
	"reflect"
	"strings"
)

type Config struct {
	AWSRegion     string `env:"AWS_REGION"`
	AWSAccessKey  string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpoint   string `env:"AWS_S3_ENDPOINT_URL"`
	AWSBucketName string `env:"AWS_S3_BUCKET_NAME"`

	DatabaseDSN string `env:"DATABASE_URL"`

	WebURLRaw string `env:"WEB_URL"`
	WebURL    *url.URL

	ListenAddr string `env:"LISTEN_ADDR"`

	// задержка дебаунса экспорта тела письма, миллисекунды
	ExportDelayMs int `env:"EXPORT_DELAY_MS"`
	// возраст зависшей загрузки до принудительной ошибки, минуты
	UploadMaxAgeMin int `env:"UPLOAD_MAX_AGE_MIN"`

	AIEndpoint string `env:"AI_ENDPOINT"`
	AIToken    string `env:"AI_TOKEN"`
	AIModel    string `env:"AI_MODEL"`

	LocalStoragePath string `env:"LOCAL_STORAGE_PATH"`

	MetricsEnable bool `env:"METRICS"`
	Demo          bool `env:"DEMO"`
}

// ReadConfig загружает конфигурацию приложения из переменных окружения и выполняет валидацию. Возвращает структуру Config с загруженными параметрами. Если WEB_URL не задан или не разбирается, приложение завершает работу с ошибкой. Числовые параметры приводятся к допустимым диапазонам.
func ReadConfig() *Config {
	config := &Config{}

	envConfig("env", config)

	// Check required envs
	if config.WebURLRaw == "" {
		slog.Error("WEB_URL is required")
		os.Exit(1)
	} else {
		var err error
		config.WebURL, err = url.Parse(config.WebURLRaw)
		if err != nil {
			slog.Error("WEB_URL incorrect", "err", err)
			os.Exit(1)
		}
	}

	if config.ListenAddr == "" {
		config.ListenAddr = ":8080"
	}

	if config.ExportDelayMs <= 0 || config.ExportDelayMs > 5000 {
		config.ExportDelayMs = 300
	}

	if config.UploadMaxAgeMin <= 0 {
		config.UploadMaxAgeMin = 30
	}

	if config.LocalStoragePath == "" {
		config.LocalStoragePath = "storage"
	}

	return config
}

// Присваивает полям в переданной структуре значения переменных. Название переменной для каждого поля лежит в теге этого поля.
func envConfig(key string, s interface{}) {
	v := reflect.ValueOf(s).Elem()
	typeParam := v.Type()
	for i := 0; i < v.NumField(); i++ {
		fName := typeParam.Field(i).Name
		fEnvTag := typeParam.Field(i).Tag.Get(key)

		if !Exist(fEnvTag) {
			continue
		}

		logValue := GetEnv(fEnvTag)
		if logValue == "" {
			continue
		}

		// Secure passwords in log
		if strings.Contains(strings.ToLower(fName), "pass") || strings.Contains(strings.ToLower(fName), "secret") || strings.Contains(strings.ToLower(fName), "token") {
			pass := strings.Split(GetEnv(fEnvTag), "")
			logValue = pass[0]
			for i := 1; i < len(pass)-1; i++ {
				logValue += "*"
			}
			logValue += pass[len(pass)-1]

		}
		slog.Info("Set config value",
			slog.String("key", typeParam.Name()+"."+fName),
			slog.String("value", logValue),
			slog.String("source", "ENVIRONMENT"),
		)

		switch v.Field(i).Interface().(type) {
		case string:
			v.Field(i).SetString(GetEnv(fEnvTag))
		case int:
			v.Field(i).SetInt(int64(GetIntEnv(fEnvTag)))
		case bool:
			v.Field(i).SetBool(GetBoolEnv(fEnvTag))
		}
	}
}
