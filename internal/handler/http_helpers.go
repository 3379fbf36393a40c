package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

// flexBool 接受 bool、字符串或数字形式的 JSON 值，统一成严格布尔。
// 无法解析的字符串视为 false，存储层永远只见到真正的布尔值。
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var asBool bool
	if err := json.Unmarshal(data, &asBool); err == nil {
		*b = flexBool(asBool)
		return nil
	}

	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(asString)))
		*b = flexBool(err == nil && parsed)
		return nil
	}

	var asNumber float64
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*b = flexBool(asNumber != 0)
		return nil
	}

	*b = false
	return nil
}

func (b *flexBool) toBoolPtr() *bool {
	if b == nil {
		return nil
	}
	value := bool(*b)
	return &value
}

// normalizeImageField interprets the legacy single-image field: the
// first return reports whether the field was present at all, the second
// is the value with null, empty and non-string inputs collapsed to nil.
func normalizeImageField(raw json.RawMessage) (bool, *string) {
	if raw == nil {
		return false, nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err != nil {
		return true, nil
	}
	trimmed := strings.TrimSpace(asString)
	if trimmed == "" {
		return true, nil
	}
	return true, &trimmed
}
