package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// MockTestKey returns the cache key holding a started mock test and its answer key
func (r *CacheKeyStruct) MockTestKey(testID string) string {
	return fmt.Sprintf("mocktest:%s", testID)
}

// UserMockTestsKey returns the cache key listing a user's open mock tests
func (r *CacheKeyStruct) UserMockTestsKey(userID string) string {
	return fmt.Sprintf("user:%s:mocktests", userID)
}

// UserMockTestsPattern matches every per-user mock test index
func (r *CacheKeyStruct) UserMockTestsPattern() string {
	return "user:*:mocktests"
}

var CacheKey = NewCacheKeyStruct()
