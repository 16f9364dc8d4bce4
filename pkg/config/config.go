// Package config는 환경 변수 기반 설정 오버레이를 제공하는 패키지입니다.
// 파일 설정은 각 서비스가 읽고, 비밀 값은 이 패키지로 환경 변수에서 덮어씁니다.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 인터페이스는 설정 값에 액세스하기 위한 메서드를 정의합니다.
type Config interface {
	IsSet(key string) bool
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetDuration(key string) time.Duration
	GetStringSlice(key string) []string
}

// viperConfig는 viper를 사용하여 Config 인터페이스를 구현합니다.
type viperConfig struct {
	v *viper.Viper
}

func (c *viperConfig) IsSet(key string) bool { return c.v.IsSet(key) }
func (c *viperConfig) GetString(key string) string { return c.v.GetString(key) }
func (c *viperConfig) GetInt(key string) int { return c.v.GetInt(key) }
func (c *viperConfig) GetBool(key string) bool { return c.v.GetBool(key) }
func (c *viperConfig) GetDuration(key string) time.Duration { return c.v.GetDuration(key) }
func (c *viperConfig) GetStringSlice(key string) []string { return c.v.GetStringSlice(key) }

// FromEnv는 prefix로 시작하는 환경 변수를 읽는 Config를 생성합니다.
// 키의 "."은 "_"로 바뀝니다. (예: service.stripe_secret_key -> BILLING_SERVICE_STRIPE_SECRET_KEY)
func FromEnv(prefix string) Config {
	v := viper.New()
	v.SetEnvPrefix(strings.ToUpper(prefix))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &viperConfig{v: v}
}

// Binding 설정 키와 덮어쓸 대상 필드의 쌍
type Binding struct {
	Key    string
	Target interface{}
}

// Bind 설정된 키의 값으로 대상 필드를 덮어씁니다.
// Target은 *string, *int, *bool, *time.Duration, *[]string 중 하나여야 하며 그 외 타입은 무시됩니다.
// 덮어쓴 키 목록을 반환합니다.
func Bind(c Config, bindings ...Binding) []string {
	applied := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if !c.IsSet(b.Key) {
			continue
		}
		switch dst := b.Target.(type) {
		case *string:
			*dst = c.GetString(b.Key)
		case *int:
			*dst = c.GetInt(b.Key)
		case *bool:
			*dst = c.GetBool(b.Key)
		case *time.Duration:
			*dst = c.GetDuration(b.Key)
		case *[]string:
			*dst = c.GetStringSlice(b.Key)
		default:
			continue
		}
		applied = append(applied, b.Key)
	}
	return applied
}
