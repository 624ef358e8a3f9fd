package conf

import (
	"fmt"
)

type Bootstrap struct {
	Server *Server `yaml:"server" json:"server"`
	Data   *Data   `yaml:"data" json:"data"`
	Stripe *Stripe `yaml:"stripe" json:"stripe"`
	Client *Client `yaml:"client" json:"client"`
	Log    *Log    `yaml:"log" json:"log"`
}

type Server struct {
	Http struct {
		Addr    string `yaml:"addr" json:"addr"`
		Timeout string `yaml:"timeout" json:"timeout"`
	} `yaml:"http" json:"http"`
}

type Data struct {
	Database struct {
		Driver          string `yaml:"driver" json:"driver"`
		Source          string `yaml:"source" json:"source"`
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`
		ConnMaxLifetime string `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	} `yaml:"database" json:"database"`
	Redis struct {
		Addr         string `yaml:"addr" json:"addr"`
		Password     string `yaml:"password" json:"password"`
		Db           int32  `yaml:"db" json:"db"`
		ReadTimeout  string `yaml:"read_timeout" json:"read_timeout"`
		WriteTimeout string `yaml:"write_timeout" json:"write_timeout"`
		DialTimeout  string `yaml:"dial_timeout" json:"dial_timeout"`
		PoolSize     int32  `yaml:"pool_size" json:"pool_size"`
		MinIdleConns int32  `yaml:"min_idle_conns" json:"min_idle_conns"`
	} `yaml:"redis" json:"redis"`
}

// Stripe 支付服务配置
type Stripe struct {
	SecretKey      string `yaml:"secret_key" json:"secret_key"`
	PublishableKey string `yaml:"publishable_key" json:"publishable_key"`
	WebhookSecret  string `yaml:"webhook_secret" json:"webhook_secret"`
	PriceID        string `yaml:"price_id" json:"price_id"`
	SuccessURL     string `yaml:"success_url" json:"success_url"`
	CancelURL      string `yaml:"cancel_url" json:"cancel_url"`
}

type Client struct {
	AuthService *AuthService `yaml:"auth_service" json:"auth_service"`
}

// AuthService 认证服务配置（外部托管的 auth/database 服务）
// AnonKey 是公开凭证, ServiceRoleKey 是服务端特权凭证, 两者不可混用
type AuthService struct {
	URL            string `yaml:"url" json:"url"`
	AnonKey        string `yaml:"anon_key" json:"anon_key"`
	ServiceRoleKey string `yaml:"service_role_key" json:"service_role_key"`
	JwtSecret      string `yaml:"jwt_secret" json:"jwt_secret"`
}

type Log struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	Output     string `yaml:"output" json:"output"`
	FilePath   string `yaml:"file_path" json:"file_path"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// Validate validates the configuration
func (b *Bootstrap) Validate() error {
	if b.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if b.Server.Http.Addr == "" {
		return fmt.Errorf("server.http.addr is required")
	}
	if b.Data == nil {
		return fmt.Errorf("data configuration is required")
	}
	if b.Data.Database.Source == "" {
		return fmt.Errorf("data.database.source is required")
	}
	if b.Stripe == nil {
		return fmt.Errorf("stripe configuration is required")
	}
	if b.Stripe.SecretKey == "" {
		return fmt.Errorf("stripe.secret_key is required")
	}
	if b.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhook_secret is required")
	}
	if b.Stripe.PriceID == "" {
		return fmt.Errorf("stripe.price_id is required")
	}
	if b.Stripe.SuccessURL == "" || b.Stripe.CancelURL == "" {
		return fmt.Errorf("stripe.success_url and stripe.cancel_url are required")
	}
	if b.Client == nil || b.Client.AuthService == nil {
		return fmt.Errorf("client.auth_service configuration is required")
	}
	if b.Client.AuthService.JwtSecret == "" {
		return fmt.Errorf("client.auth_service.jwt_secret is required")
	}
	return nil
}
