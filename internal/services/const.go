package services

import (
	"fmt"
	"strings"
	"time"
)

const (
	LEADERBOARD_OVERALL        = "overall"
	LEADERBOARD_OVERALL_WEEKLY = "overall_weekly"

	CACHE_TTL_1_MIN   = 1 * time.Minute
	CACHE_TTL_15_MINS = 15 * time.Minute

	USERNAME_MIN_LENGTH = 3
	USERNAME_MAX_LENGTH = 32
	PASSWORD_MIN_LENGTH = 8
	// bcrypt ignores anything past 72 bytes
	PASSWORD_MAX_LENGTH = 72
)

func DBKeyGameSession(sessionID string) string {
	return fmt.Sprintf("game_session:%s", sessionID)
}

func DBKeyLeaderboardByUser(board string, userID string, limit int) string {
	return fmt.Sprintf("leaderboard_by_user:%s:%s:%d", strings.ToLower(board), userID, limit)
}

func LimitKeySessionCreate(userID string) string {
	return fmt.Sprintf("limit:session_create:%s", userID)
}

func LockKeyCronJob(job string) string {
	return fmt.Sprintf("lock:cron:%s", job)
}

func IsValidLeaderboard(board string) bool {
	return board == LEADERBOARD_OVERALL || board == LEADERBOARD_OVERALL_WEEKLY
}
