package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return nil, ErrInvalidRequest
	}
	return &parsed, nil
}

// queryOrgID reads the org filter, accepting both org_id and orgId.
func queryOrgID(c *gin.Context) (*snowflake.ID, error) {
	raw := c.Query("org_id")
	if strings.TrimSpace(raw) == "" {
		raw = c.Query("orgId")
	}
	id, err := parseOptionalSnowflakeID(raw)
	if err != nil {
		return nil, newValidationError("org_id", "invalid_org_id", "org_id must be a valid id")
	}
	return id, nil
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, newValidationError(name, "invalid_"+toSnake(name), name+" must be a valid id")
	}
	return id, nil
}

// queryLimit parses limit with a default and an upper bound.
func queryLimit(c *gin.Context, def, max int) int {
	n, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, max)
}

func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
