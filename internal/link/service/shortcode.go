package service

import (
	"math"

	"couponhub/internal/metrics"
	"couponhub/pkg/base62"

	"github.com/pkg/errors"
)

// Соль перемешивает соседние snowflake-id, чтобы коды не шли подряд.
const (
	saltMultiplier = 1000003
	saltOffset     = 987654321
)

type IDSource interface {
	NextID() (int64, error)
}

type CodeGenerator struct {
	ids IDSource
}

func NewCodeGenerator(ids IDSource) *CodeGenerator {
	return &CodeGenerator{ids: ids}
}

func (g *CodeGenerator) Generate() (string, error) {
	id, err := g.ids.NextID()
	if err != nil {
		return "", errors.Wrap(err, "next snowflake id")
	}
	metrics.SnowflakeIDsGenerated.Inc()
	return base62.Encode(uint64(salt(id))), nil
}

func salt(id int64) int64 {
	return (id*saltMultiplier + saltOffset) & math.MaxInt64
}
