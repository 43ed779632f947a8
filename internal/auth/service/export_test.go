package service

func RemoveExpiredForTest(c *MemoryRefreshCache) int {
	return c.removeExpired()
}
