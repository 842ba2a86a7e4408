// SPDX-License-Identifier: MIT

package config

import (
	"reflect"
	"strings"
)

// sensitiveKeywords mark field or key names whose values must never be logged.
var sensitiveKeywords = []string{
	"password",
	"secret",
	"token",
	"apikey",
	"api_key",
	"credential",
}

// MaskSecrets converts data into maps and slices with sensitive fields
// replaced by "***". Used when logging the effective configuration.
func MaskSecrets(data any) any {
	if data == nil {
		return nil
	}

	val := reflect.ValueOf(data)
	for val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return nil
		}
		val = val.Elem()
	}

	switch val.Kind() {
	case reflect.Map:
		result := make(map[string]any)
		iter := val.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			if isSensitiveKey(key) {
				result[key] = "***"
				continue
			}
			result[key] = MaskSecrets(iter.Value().Interface())
		}
		return result

	case reflect.Slice, reflect.Array:
		result := make([]any, val.Len())
		for i := range result {
			result[i] = MaskSecrets(val.Index(i).Interface())
		}
		return result

	case reflect.Struct:
		if _, ok := val.Interface().(interface{ String() string }); ok {
			return val.Interface()
		}
		result := make(map[string]any)
		typ := val.Type()
		for i := 0; i < val.NumField(); i++ {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			if isSensitiveKey(field.Name) {
				if !val.Field(i).IsZero() {
					result[field.Name] = "***"
				} else {
					result[field.Name] = ""
				}
				continue
			}
			result[field.Name] = MaskSecrets(val.Field(i).Interface())
		}
		return result

	default:
		return val.Interface()
	}
}

func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}
