package tweetstore

import (
	"fmt"
	"strings"
)

type dialect struct {
	createTable string
	placeholder func(n int) string
}

var dialects = map[string]dialect{
	DriverMySQL: {
		createTable: `CREATE TABLE IF NOT EXISTS tweets (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			user_id BIGINT NULL,
			screen_name VARCHAR(255) NOT NULL DEFAULT '',
			tweet TEXT NOT NULL,
			timestamp DATETIME(6) NOT NULL,
			iso_timestamp DATETIME(6) NOT NULL,
			location VARCHAR(255) NOT NULL DEFAULT '',
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			statuses_count BIGINT NOT NULL DEFAULT 0,
			mbti_personality VARCHAR(16) NOT NULL DEFAULT 'unknown',
			total_retweet_count BIGINT NOT NULL DEFAULT 0,
			total_favorite_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_tweets_user_id (user_id),
			INDEX idx_tweets_timestamp (timestamp)
		)`,
		placeholder: func(int) string { return "?" },
	},
	DriverPostgres: {
		createTable: `CREATE TABLE IF NOT EXISTS tweets (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NULL,
			screen_name VARCHAR(255) NOT NULL DEFAULT '',
			tweet TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			iso_timestamp TIMESTAMPTZ NOT NULL,
			location VARCHAR(255) NOT NULL DEFAULT '',
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			statuses_count BIGINT NOT NULL DEFAULT 0,
			mbti_personality VARCHAR(16) NOT NULL DEFAULT 'unknown',
			total_retweet_count BIGINT NOT NULL DEFAULT 0,
			total_favorite_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	},
	DriverSQLite: {
		createTable: `CREATE TABLE IF NOT EXISTS tweets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NULL,
			screen_name TEXT NOT NULL DEFAULT '',
			tweet TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			iso_timestamp DATETIME NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			verified BOOLEAN NOT NULL DEFAULT 0,
			statuses_count INTEGER NOT NULL DEFAULT 0,
			mbti_personality TEXT NOT NULL DEFAULT 'unknown',
			total_retweet_count INTEGER NOT NULL DEFAULT 0,
			total_favorite_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		placeholder: func(int) string { return "?" },
	},
}

var insertColumns = []string{
	"user_id", "screen_name", "tweet", "timestamp", "iso_timestamp",
	"location", "verified", "statuses_count", "mbti_personality",
	"total_retweet_count", "total_favorite_count",
}

func (d dialect) insertSQL() string {
	marks := make([]string, len(insertColumns))
	for i := range marks {
		marks[i] = d.placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO tweets (%s) VALUES (%s)",
		strings.Join(insertColumns, ", "), strings.Join(marks, ", "))
}
