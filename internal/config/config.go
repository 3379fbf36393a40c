package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	DatabasePath      string
	SessionSecret     string
	GinMode           string
	UploadDir         string
	UploadURLPath     string
	SuperRootUserName string
	SuperRootPassword string
	SiteBaseURL       string
}

// Load reads configuration through viper: UNICMS_* environment
// variables layered over an optional settings file, with safe defaults
// for everything that is missing.
func Load() AppConfig {
	v := viper.New()
	v.SetEnvPrefix("unicms")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("settings")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	// 配置文件是可选的，缺失时依赖环境变量与默认值
	_ = v.ReadInConfig()

	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "unicms.db")
	v.SetDefault("session_secret", "unicms-dev-secret")
	v.SetDefault("gin_mode", "release")
	v.SetDefault("upload_dir", "web/static/uploads")
	v.SetDefault("upload_url_path", "/static/uploads")
	v.SetDefault("site_base_url", "https://www.unicms.edu")

	port := strings.TrimSpace(v.GetString("port"))
	listenAddr := strings.TrimSpace(v.GetString("listen_addr"))
	if listenAddr == "" {
		listenAddr = fmt.Sprintf(":%s", port)
	}

	return AppConfig{
		ListenAddr:        listenAddr,
		Port:              port,
		DatabasePath:      strings.TrimSpace(v.GetString("database_path")),
		SessionSecret:     strings.TrimSpace(v.GetString("session_secret")),
		GinMode:           strings.TrimSpace(v.GetString("gin_mode")),
		UploadDir:         strings.TrimSpace(v.GetString("upload_dir")),
		UploadURLPath:     strings.TrimSpace(v.GetString("upload_url_path")),
		SuperRootUserName: strings.TrimSpace(v.GetString("super_root_user_name")),
		SuperRootPassword: strings.TrimSpace(v.GetString("super_root_password")),
		SiteBaseURL:       strings.TrimSpace(v.GetString("site_base_url")),
	}
}
