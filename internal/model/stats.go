package model

import "time"

// StatsRetentionDays 日活记录保留天数
const StatsRetentionDays = 30

// DateLayout 日活记录的日期键格式
const DateLayout = "2006-01-02"

// Stats 全局统计
type Stats struct {
	DailyActiveUsers map[string][]string `json:"dailyActiveUsers"`
	TotalRequests    int64               `json:"totalRequests"`
	LastUpdated      time.Time           `json:"lastUpdated"`
}

// StatsSummary GET /api/stats 的返回
type StatsSummary struct {
	TotalUsers        int            `json:"totalUsers"`
	TotalBots         int            `json:"totalBots"`
	PublicBots        int            `json:"publicBots"`
	PrivateBots       int            `json:"privateBots"`
	DailyActiveUsers  int            `json:"dailyActiveUsers"`
	AverageDailyUsers int            `json:"averageDailyUsers"`
	DailyUserData     map[string]int `json:"dailyUserData"`
	TotalRequests     int64          `json:"totalRequests"`
	LastUpdated       time.Time      `json:"lastUpdated"`
}
