package mmu

import (
	"context"

	"github.com/lexlapax/recall/pkg/errors"
	"github.com/lexlapax/recall/pkg/log"
	"github.com/lexlapax/recall/pkg/mem/ltm"
	"github.com/lexlapax/recall/pkg/scripting"
)

const (
	// beforeEncodeFuncName is the name of the Lua function to call before LTM encoding
	beforeEncodeFuncName = "before_encode"

	// afterEncodeFuncName is the name of the Lua function to call after LTM encoding
	afterEncodeFuncName = "after_encode"
)

// callBeforeEncodeHook lets a script veto or rewrite a fact. The hook gets a
// table with key, value and category. Returning false drops the fact; a table
// replaces any of the fields it sets; anything else keeps the fact as is.
// Hook failures are logged and never block storage.
func callBeforeEncodeHook(ctx context.Context, engine scripting.Engine, fact ltm.Fact) (ltm.Fact, bool) {
	if !engine.HasFunction(beforeEncodeFuncName) {
		return fact, true
	}

	result, err := engine.ExecuteFunction(ctx, beforeEncodeFuncName, map[string]interface{}{
		"key":      fact.Key,
		"value":    fact.Value,
		"category": fact.Category,
	})
	if err != nil {
		if !errors.Is(err, errors.ErrFunctionNotFound) {
			log.WarnContext(ctx, "Error calling Lua hook", "hook", beforeEncodeFuncName, "error", err)
		}
		return fact, true
	}

	switch v := result.(type) {
	case bool:
		return fact, v
	case map[string]interface{}:
		if key, ok := v["key"].(string); ok {
			fact.Key = key
		}
		if value, ok := v["value"].(string); ok {
			fact.Value = value
		}
		if category, ok := v["category"].(string); ok {
			fact.Category = category
		}
		return fact, true
	default:
		return fact, true
	}
}

// callAfterEncodeHook notifies a script that a record was stored. Its return
// value is ignored.
func callAfterEncodeHook(ctx context.Context, engine scripting.Engine, record ltm.MemoryRecord) {
	if !engine.HasFunction(afterEncodeFuncName) {
		return
	}

	_, err := engine.ExecuteFunction(ctx, afterEncodeFuncName, map[string]interface{}{
		"id":         record.ID,
		"key":        record.Key,
		"value":      record.Value,
		"text":       record.Text,
		"category":   record.Category,
		"created_at": record.CreatedAt.Unix(),
	})
	if err != nil {
		log.WarnContext(ctx, "Error calling Lua hook", "hook", afterEncodeFuncName, "error", err)
	}
}
