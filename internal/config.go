package internal

import (
	"fmt"
	"os"
	"strings"

	"github.com/jinzhu/configor"
	"github.com/joho/godotenv"
	"github.com/massmux/QwenImageBot/internal/errors"
	log "github.com/sirupsen/logrus"
)

var Configuration = Config{}

type Config struct {
	Bot      BotConfiguration      `yaml:"bot"`
	Telegram TelegramConfiguration `yaml:"telegram"`
	Qwen     QwenConfiguration     `yaml:"qwen_image"`
	Commands CommandConfiguration  `yaml:"commands"`
}

type SocksConfiguration struct {
	Host     string `yaml:"host"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type BotConfiguration struct {
	SocksProxy   *SocksConfiguration `yaml:"socks_proxy,omitempty"`
	AdminAPIHost string              `yaml:"admin_api_host" default:"127.0.0.1:6060"`
}

type TelegramConfiguration struct {
	ApiKey    string `yaml:"api_key" env:"TELEGRAM_API_KEY"`
	ParseMode string `yaml:"parse_mode" default:"Markdown"`
}

type Dimension struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (d Dimension) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

type QwenConfiguration struct {
	BaseURL               string               `yaml:"base_url" default:"https://dashscope.aliyuncs.com/api/v1/services/aigc/text2image/image-synthesis"`
	TaskURL               string               `yaml:"task_url" default:"https://dashscope.aliyuncs.com/api/v1/tasks/"`
	EditURL               string               `yaml:"edit_url" default:"https://dashscope.aliyuncs.com/api/v1/services/aigc/multimodal-generation/generation"`
	Models                []string             `yaml:"model"`
	DefaultModel          string               `yaml:"default_model"`
	EditModels            []string             `yaml:"edit_model"`
	DefaultEditModel      string               `yaml:"default_edit_model"`
	ApiKey1               string               `yaml:"api_key_1" env:"QWEN_API_KEY_1"`
	ApiKey2               string               `yaml:"api_key_2" env:"QWEN_API_KEY_2"`
	Ratios                map[string]Dimension `yaml:"ratios"`
	DefaultRatio          string               `yaml:"default_ratio" default:"1:1"`
	DefaultNegativePrompt string               `yaml:"default_negative_prompt"`
	// PromptExtend is a pointer so an explicit false survives defaulting.
	PromptExtend       *bool `yaml:"prompt_extend"`
	PollInterval       int   `yaml:"poll_interval" default:"2"`
	PollAttempts       int   `yaml:"poll_attempts" default:"60"`
	SubmitTimeout      int   `yaml:"submit_timeout" default:"180"`
	PollTimeout        int   `yaml:"poll_timeout" default:"30"`
	EditTimeout        int   `yaml:"edit_timeout" default:"180"`
	PendingEditTimeout int   `yaml:"pending_edit_timeout" default:"180"`
}

// GlobalPromptExtend returns the default prompt extension setting for users without their own.
func (q QwenConfiguration) GlobalPromptExtend() bool {
	if q.PromptExtend == nil {
		return true
	}
	return *q.PromptExtend
}

type CommandConfiguration struct {
	Image   []string `yaml:"image_command"`
	Edit    []string `yaml:"edit_command"`
	Control []string `yaml:"control_command"`
	Account []string `yaml:"account_command"`
	Help    []string `yaml:"help_command"`
}

var (
	defaultModels         = []string{"wan2.2-t2i-flash", "wan2.2-t2i-plus"}
	defaultEditModels     = []string{"qwen-image-edit", "qwen-image-edit-plus"}
	defaultImageCommand   = []string{"Q画图", "Q生成"}
	defaultEditCommand    = []string{"Q改图", "Q编辑"}
	defaultControlCommand = []string{"Q开启智能扩写", "Q禁用智能扩写"}
	defaultAccountCommand = []string{"Q切换账号 1", "Q切换账号 2"}
	defaultHelpCommand    = []string{"Q帮助"}
)

const defaultNegativePrompt = "低分辨率，低画质，肢体畸形，手指畸形，画面过饱和，蜡像感，人脸无细节，过度光滑，画面具有AI感。构图混乱。文字模糊，扭曲。"

// DefaultRatios holds the qwen-image output sizes per aspect ratio.
func DefaultRatios() map[string]Dimension {
	return map[string]Dimension{
		"1:1":  {Width: 1328, Height: 1328},
		"16:9": {Width: 1664, Height: 928},
		"9:16": {Width: 928, Height: 1664},
		"4:3":  {Width: 1472, Height: 1140},
		"3:4":  {Width: 1140, Height: 1472},
		"3:2":  {Width: 1584, Height: 1056},
		"2:3":  {Width: 1056, Height: 1584},
	}
}

// LoadConfiguration reads the yaml files into Configuration. Values from a .env
// file in the working directory are exported before loading.
func LoadConfiguration(files ...string) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			log.Warnf("[config] could not load .env: %v", err)
		}
	}
	if len(files) == 0 {
		files = []string{"config.yaml"}
	}
	cfg := Config{}
	if err := configor.Load(&cfg, files...); err != nil {
		return err
	}
	if err := cfg.Check(); err != nil {
		return err
	}
	Configuration = cfg
	return nil
}

// Check fills in defaults and validates the configuration.
func (c *Config) Check() error {
	checkCommandConfiguration(&c.Commands)
	return checkQwenConfiguration(&c.Qwen)
}

func checkCommandConfiguration(c *CommandConfiguration) {
	if len(c.Image) == 0 {
		c.Image = defaultImageCommand
	}
	if len(c.Edit) == 0 {
		c.Edit = defaultEditCommand
	}
	if len(c.Control) == 0 {
		c.Control = defaultControlCommand
	}
	if len(c.Account) == 0 {
		c.Account = defaultAccountCommand
	}
	if len(c.Help) == 0 {
		c.Help = defaultHelpCommand
	}
}

func checkQwenConfiguration(q *QwenConfiguration) error {
	if q.ApiKey1 == "" && q.ApiKey2 == "" {
		return errors.New(errors.ConfigMissingError, fmt.Errorf("please configure qwen_image.api_key_1 or qwen_image.api_key_2"))
	}
	if len(q.Models) == 0 {
		q.Models = defaultModels
	}
	if q.DefaultModel == "" {
		q.DefaultModel = q.Models[0]
	}
	if len(q.EditModels) == 0 {
		q.EditModels = defaultEditModels
	}
	if q.DefaultEditModel == "" {
		q.DefaultEditModel = q.EditModels[0]
	}
	if len(q.Ratios) == 0 {
		q.Ratios = DefaultRatios()
	}
	if q.DefaultRatio == "" {
		q.DefaultRatio = "1:1"
	}
	if _, ok := q.Ratios[q.DefaultRatio]; !ok {
		return errors.New(errors.ConfigMissingError, fmt.Errorf("default ratio %s is not in qwen_image.ratios", q.DefaultRatio))
	}
	for ratio, d := range q.Ratios {
		if d.Width <= 0 || d.Height <= 0 {
			return errors.New(errors.ConfigMissingError, fmt.Errorf("ratio %s has invalid dimensions %s", ratio, d))
		}
	}
	if q.DefaultNegativePrompt == "" {
		q.DefaultNegativePrompt = defaultNegativePrompt
	}
	if !strings.HasSuffix(q.TaskURL, "/") {
		q.TaskURL = q.TaskURL + "/"
	}
	if q.ApiKey1 == "" {
		log.Warnf("[config] qwen_image.api_key_1 is empty, account 1 can not be selected")
	}
	return nil
}
