// Package config loads the pipeline's named constants (§6) from built-in
// defaults, an optional YAML file, and environment variables, following the
// viper-based layering in yairfalse-vaino's internal/config package.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// RiskWeights are the composite risk_score weights (§4.4 Pass C). They must
// sum to 1.00.
type RiskWeights struct {
	Teacher   float64 `mapstructure:"teacher"`
	Classroom float64 `mapstructure:"classroom"`
	Growth    float64 `mapstructure:"growth"`
}

// RiskBands are the risk_score cut points for CRITICAL/HIGH/MODERATE
// (§4.4 Pass C); below the lowest band is LOW.
type RiskBands struct {
	Critical float64 `mapstructure:"critical"`
	High     float64 `mapstructure:"high"`
	Moderate float64 `mapstructure:"moderate"`
}

// PriorityBuckets are the percentile cut points for TOP_5/TOP_10/TOP_20
// (§4.5).
type PriorityBuckets struct {
	Top5  float64 `mapstructure:"top5"`
	Top10 float64 `mapstructure:"top10"`
	Top20 float64 `mapstructure:"top20"`
}

// BudgetConfig parameterises the Budget Allocation simulator (§4.6).
type BudgetConfig struct {
	TotalClassroomBudget float64 `mapstructure:"total_classroom"`
	CostPerClassroom     float64 `mapstructure:"cost_per_classroom"`
	MaxTeachers          int     `mapstructure:"max_teachers"`
}

// MaxClassrooms is the derived classroom allocation cap for a given year
// (§4.6): floor(total_classroom_budget / cost_per_classroom).
func (b BudgetConfig) MaxClassrooms() int {
	if b.CostPerClassroom <= 0 {
		return 0
	}
	return int(b.TotalClassroomBudget / b.CostPerClassroom)
}

// ComplianceGrades are the district-year avg_risk_score cut points for the
// A/B/C/D/F letter grade (§6).
type ComplianceGrades struct {
	A float64 `mapstructure:"a"`
	B float64 `mapstructure:"b"`
	C float64 `mapstructure:"c"`
	D float64 `mapstructure:"d"`
}

// Config is the full set of named constants of §6, resolved once at startup
// and threaded through every engine. Defaults match spec.md §6 exactly.
type Config struct {
	RiskWeights        RiskWeights       `mapstructure:"risk_weights"`
	RiskBands          RiskBands         `mapstructure:"risk_bands"`
	GrowthCapRisk      float64           `mapstructure:"growth_cap_risk"`
	TrendBand          float64           `mapstructure:"trend_band"`
	VolatileThreshold  float64           `mapstructure:"volatile_threshold"`
	PriorityBuckets    PriorityBuckets   `mapstructure:"priority_buckets"`
	Budget             BudgetConfig      `mapstructure:"budget"`
	ProposalNoiseFloor float64           `mapstructure:"proposal_noise_floor"`
	ProposalNoiseSpan  float64           `mapstructure:"proposal_noise_span"`
	ForecastGrowthCap  float64           `mapstructure:"forecast_growth_cap"`
	ComplianceGrades   ComplianceGrades  `mapstructure:"compliance_grades"`
	BatchTimeoutSeconds int              `mapstructure:"batch_timeout_seconds"`
	DatabaseURL        string            `mapstructure:"database_url"`
}

// setDefaults installs every §6 default into viper, mirroring vaino's
// setDefaults() layering (defaults -> file -> env).
func setDefaults(v *viper.Viper) {
	v.SetDefault("risk_weights.teacher", 0.45)
	v.SetDefault("risk_weights.classroom", 0.35)
	v.SetDefault("risk_weights.growth", 0.20)

	v.SetDefault("risk_bands.critical", 0.60)
	v.SetDefault("risk_bands.high", 0.40)
	v.SetDefault("risk_bands.moderate", 0.20)

	v.SetDefault("growth_cap_risk", 0.50)
	v.SetDefault("trend_band", 0.05)
	v.SetDefault("volatile_threshold", 0.15)

	v.SetDefault("priority_buckets.top5", 0.05)
	v.SetDefault("priority_buckets.top10", 0.10)
	v.SetDefault("priority_buckets.top20", 0.20)

	v.SetDefault("budget.total_classroom", 5e8)
	v.SetDefault("budget.cost_per_classroom", 5e5)
	v.SetDefault("budget.max_teachers", 10000)

	v.SetDefault("proposal_noise_floor", 0.70)
	v.SetDefault("proposal_noise_span", 0.80) // 0.70 + up to 0.79 => max 1.49

	v.SetDefault("forecast_growth_cap", 0.30)

	v.SetDefault("compliance_grades.a", 0.15)
	v.SetDefault("compliance_grades.b", 0.30)
	v.SetDefault("compliance_grades.c", 0.50)
	v.SetDefault("compliance_grades.d", 0.70)

	v.SetDefault("batch_timeout_seconds", 120)
}

// Load resolves a Config from defaults, an optional YAML file at path (may
// be empty), and environment variables prefixed SCHOOLRISK_ (e.g.
// SCHOOLRISK_DATABASE_URL). DATABASE_URL is also accepted unprefixed for
// compatibility with the teacher's env contract.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("schoolrisk")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if cfg.DatabaseURL == "" {
		if dbURL := v.GetString("database_url"); dbURL != "" {
			cfg.DatabaseURL = dbURL
		} else {
			cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		}
	}

	return &cfg, cfg.Validate()
}

// Validate checks the invariants the downstream engines rely on (§4.4's
// "weights sum to 1.00").
func (c *Config) Validate() error {
	sum := c.RiskWeights.Teacher + c.RiskWeights.Classroom + c.RiskWeights.Growth
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: risk_weights must sum to 1.00, got %.4f", sum)
	}
	if c.RiskBands.Critical <= c.RiskBands.High || c.RiskBands.High <= c.RiskBands.Moderate {
		return fmt.Errorf("config: risk_bands must be strictly descending critical > high > moderate")
	}
	if c.Budget.CostPerClassroom <= 0 {
		return fmt.Errorf("config: budget.cost_per_classroom must be positive")
	}
	return nil
}
