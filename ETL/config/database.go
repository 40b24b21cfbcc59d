package config

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

// Поддерживаемые драйверы хранилища
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// ConnectWarehouse устанавливает подключение к хранилищу
func ConnectWarehouse(ctx context.Context, cfg DatabaseConfig) (*sql.DB, error) {
	var db *sql.DB

	switch cfg.Driver {
	case DriverPostgres:
		connConfig, err := pgx.ParseConfig(PostgresDSN(cfg))
		if err != nil {
			return nil, fmt.Errorf("ошибка разбора параметров подключения к PostgreSQL: %w", err)
		}
		db = stdlib.OpenDB(*connConfig)
	case DriverMySQL:
		connector, err := mysql.NewConnector(MySQLConfig(cfg))
		if err != nil {
			return nil, fmt.Errorf("ошибка подключения к MySQL: %w", err)
		}
		db = sql.OpenDB(connector)
	default:
		return nil, fmt.Errorf("неподдерживаемый драйвер хранилища %q", cfg.Driver)
	}

	// Настройка параметров подключения
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Проверка подключения
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось установить соединение с хранилищем %s:%d/%s: %w",
			cfg.Host, cfg.Port, cfg.DBName, err)
	}

	return db, nil
}

// PostgresDSN формирует строку подключения к PostgreSQL
func PostgresDSN(cfg DatabaseConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.DBName,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// MySQLConfig формирует конфигурацию драйвера MySQL
func MySQLConfig(cfg DatabaseConfig) *mysql.Config {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.DBName
	mc.ParseTime = true
	return mc
}

// Placeholder возвращает формат плейсхолдеров squirrel для драйвера
func Placeholder(driver string) sq.PlaceholderFormat {
	if driver == DriverPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Builder возвращает squirrel SQL Builder для драйвера
func Builder(driver string) sq.StatementBuilderType {
	return sq.StatementBuilder.PlaceholderFormat(Placeholder(driver))
}

// QualifiedTable добавляет схему к имени таблицы, если она задана
func QualifiedTable(schema, table string) string {
	if schema == "" {
		return table
	}
	return schema + "." + table
}
