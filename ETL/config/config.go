package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix - префикс переменных окружения, переопределяющих конфигурацию
const EnvPrefix = "TAXI_ETL"

// ConfigPathEnv - переменная окружения с путем к файлу конфигурации
const ConfigPathEnv = "TAXI_ETL_CONFIG"

// DefaultConfigPath используется, если ConfigPathEnv не задана
const DefaultConfigPath = "config/etl.yaml"

// ETLConfig содержит конфигурацию для ETL-процесса
type ETLConfig struct {
	// Источники сырых данных
	Sources SourcesConfig `mapstructure:"sources"`

	// Каталоги и файлы пайплайна
	Paths PathsConfig `mapstructure:"paths"`

	// Конфигурация для подключения к хранилищу (целевая БД)
	Warehouse DatabaseConfig `mapstructure:"warehouse"`

	// Параметры загрузки в хранилище
	Load LoadConfig `mapstructure:"load"`

	// Часовой пояс метки загрузки (load_datetime)
	LoadTimezone string `mapstructure:"load_timezone" validate:"required"`

	// Включение/отключение подробного логирования
	EnableDetailedLogging bool `mapstructure:"enable_detailed_logging"`
}

// SourcesConfig описывает удаленные ресурсы для фазы Extract
type SourcesConfig struct {
	TripDataURL   string        `mapstructure:"trip_data_url" validate:"required"`
	ZoneLookupURL string        `mapstructure:"zone_lookup_url" validate:"required"`
	HTTPTimeout   time.Duration `mapstructure:"http_timeout" validate:"gt=0"`
	S3Region      string        `mapstructure:"s3_region"`
}

// PathsConfig описывает локальные каталоги и внешние документы
type PathsConfig struct {
	RawDir       string `mapstructure:"raw_dir" validate:"required"`
	StagingDir   string `mapstructure:"staging_dir" validate:"required"`
	WarehouseDir string `mapstructure:"warehouse_dir" validate:"required"`
	SchemaFile   string `mapstructure:"schema_file" validate:"required"`
	DDLFile      string `mapstructure:"ddl_file" validate:"required"`
}

// LoadConfig описывает фазу Load
type LoadConfig struct {
	// Количество строк в одном INSERT
	BatchSize int `mapstructure:"batch_size" validate:"min=1"`

	// Все таблицы в одной транзакции (по умолчанию - транзакция на таблицу)
	Atomic bool `mapstructure:"atomic"`
}

// DatabaseConfig содержит настройки подключения к базе данных
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver" validate:"oneof=postgres mysql"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	Schema   string `mapstructure:"schema"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Значения конфигурации по умолчанию
var (
	DefaultWarehouseConfig = DatabaseConfig{
		Driver:  DriverPostgres,
		Host:    "localhost",
		Port:    5432,
		User:    "postgres",
		DBName:  "nyc_taxi",
		Schema:  "public",
		SSLMode: "disable",
	}

	DefaultETLConfig = ETLConfig{
		Sources: SourcesConfig{
			TripDataURL:   "https://d37ci6vzurychx.cloudfront.net/trip-data/yellow_tripdata_2024-01.parquet",
			ZoneLookupURL: "https://d37ci6vzurychx.cloudfront.net/misc/taxi_zone_lookup.csv",
			HTTPTimeout:   10 * time.Minute,
			S3Region:      "us-east-1",
		},
		Paths: PathsConfig{
			RawDir:       "data/raw",
			StagingDir:   "data/staging",
			WarehouseDir: "data/warehouse",
			SchemaFile:   "config/schema.json",
			DDLFile:      "sql/schema.sql",
		},
		Warehouse: DefaultWarehouseConfig,
		Load: LoadConfig{
			BatchSize: 1000,
		},
		LoadTimezone:          "America/Sao_Paulo",
		EnableDetailedLogging: true,
	}
)

// GetConfigPath возвращает путь к файлу конфигурации из окружения
func GetConfigPath() string {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path
	}
	return DefaultConfigPath
}

// Load читает конфигурацию: значения по умолчанию, затем файл (если есть),
// затем переменные окружения TAXI_ETL_*
func Load(path string) (ETLConfig, error) {
	v := viper.New()
	setDefaults(v, DefaultETLConfig)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return ETLConfig{}, fmt.Errorf("ошибка чтения файла конфигурации %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return ETLConfig{}, fmt.Errorf("ошибка доступа к файлу конфигурации %s: %w", path, err)
		}
	}

	var cfg ETLConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return ETLConfig{}, fmt.Errorf("ошибка разбора конфигурации: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return ETLConfig{}, err
	}
	return cfg, nil
}

// Validate проверяет конфигурацию
func (c ETLConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("некорректная конфигурация: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location возвращает часовой пояс метки загрузки
func (c ETLConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.LoadTimezone)
	if err != nil {
		return nil, fmt.Errorf("неизвестный часовой пояс %q: %w", c.LoadTimezone, err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper, c ETLConfig) {
	v.SetDefault("sources.trip_data_url", c.Sources.TripDataURL)
	v.SetDefault("sources.zone_lookup_url", c.Sources.ZoneLookupURL)
	v.SetDefault("sources.http_timeout", c.Sources.HTTPTimeout)
	v.SetDefault("sources.s3_region", c.Sources.S3Region)

	v.SetDefault("paths.raw_dir", c.Paths.RawDir)
	v.SetDefault("paths.staging_dir", c.Paths.StagingDir)
	v.SetDefault("paths.warehouse_dir", c.Paths.WarehouseDir)
	v.SetDefault("paths.schema_file", c.Paths.SchemaFile)
	v.SetDefault("paths.ddl_file", c.Paths.DDLFile)

	v.SetDefault("warehouse.driver", c.Warehouse.Driver)
	v.SetDefault("warehouse.host", c.Warehouse.Host)
	v.SetDefault("warehouse.port", c.Warehouse.Port)
	v.SetDefault("warehouse.user", c.Warehouse.User)
	v.SetDefault("warehouse.password", c.Warehouse.Password)
	v.SetDefault("warehouse.dbname", c.Warehouse.DBName)
	v.SetDefault("warehouse.schema", c.Warehouse.Schema)
	v.SetDefault("warehouse.sslmode", c.Warehouse.SSLMode)

	v.SetDefault("load.batch_size", c.Load.BatchSize)
	v.SetDefault("load.atomic", c.Load.Atomic)

	v.SetDefault("load_timezone", c.LoadTimezone)
	v.SetDefault("enable_detailed_logging", c.EnableDetailedLogging)
}
