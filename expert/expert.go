package expert

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const (
	ttlStdDevAlertAbove = 10.0
	ttlMeanAlertBelow   = 45.0
)

// Rule is one row of the classification table.
type Rule struct {
	Name      string
	Condition string
	Status    string
	Severity  Severity
	Group     Group

	program *vm.Program
}

// rules is evaluated top to bottom; the first match wins.
var rules = []*Rule{
	{
		Name:      "host-unreachable",
		Condition: "loss_mean > 80",
		Status:    StatusHostUnreachable,
		Severity:  SeverityError,
		Group:     GroupAvailability,
	},
	{
		Name:      "icmp-flood",
		Condition: "rate_mean > 100 && anomaly_count > 10",
		Status:    StatusICMPFlood,
		Severity:  SeverityError,
		Group:     GroupSecurity,
	},
	{
		Name:      "multiple-threats",
		Condition: "ttl_alert && anomaly_count > 5",
		Status:    StatusMultipleThreats,
		Severity:  SeverityError,
		Group:     GroupSecurity,
	},
	{
		Name:      "ttl-spoofing",
		Condition: "ttl_alert",
		Status:    StatusTTLSpoofing,
		Severity:  SeverityWarning,
		Group:     GroupSecurity,
	},
	{
		Name:      "suspicious-activity",
		Condition: "anomaly_count > 10",
		Status:    StatusSuspicious,
		Severity:  SeverityWarning,
		Group:     GroupSecurity,
	},
	{
		Name:      "low-bandwidth",
		Condition: "rtt_mean > 150 && download > 0 && download < 5",
		Status:    StatusLowBandwidth,
		Severity:  SeverityNote,
		Group:     GroupPerformance,
	},
	{
		Name:      "congestion",
		Condition: "rtt_mean > 150",
		Status:    StatusCongestion,
		Severity:  SeverityNote,
		Group:     GroupPerformance,
	},
}

func init() {
	for _, r := range rules {
		program, err := expr.Compile(r.Condition, expr.Env(Env{}), expr.AsBool())
		if err != nil {
			panic(fmt.Sprintf("expert: compile rule %s: %v", r.Name, err))
		}
		r.program = program
	}
}

// Rules returns the classification table in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	for i, r := range rules {
		out[i] = *r
	}
	return out
}

// TTLCheck flags possible spoofing when TTLs are both scattered and low.
func TTLCheck(stddev, mean float64) (bool, string) {
	if stddev > ttlStdDevAlertAbove && mean < ttlMeanAlertBelow {
		return true, TTLReasonSpoofing
	}
	return false, TTLReasonNormal
}

// Classify returns the verdict of the first matching rule, or Normal.
func Classify(in Inputs) Verdict {
	alert, reason := TTLCheck(in.TTLStdDev, in.TTLMean)

	env := Env{
		LossMean:     in.LossMean,
		RateMean:     in.RateMean,
		RTTMean:      in.RTTMean,
		TTLMean:      in.TTLMean,
		TTLStdDev:    in.TTLStdDev,
		TTLAlert:     alert,
		AnomalyCount: in.AnomalyCount,
	}
	if in.Bandwidth.Known() {
		env.Download = in.Bandwidth.DownloadMbps
		env.Upload = in.Bandwidth.UploadMbps
	}

	v := Verdict{
		Status:    StatusNormal,
		Severity:  SeverityChat,
		Group:     GroupNone,
		TTLAlert:  alert,
		TTLReason: reason,
		Rule:      "normal",
	}
	for _, r := range rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			// Conditions are type-checked against Env at init.
			panic(fmt.Sprintf("expert: evaluate rule %s: %v", r.Name, err))
		}
		if matched, _ := out.(bool); matched {
			v.Status = r.Status
			v.Severity = r.Severity
			v.Group = r.Group
			v.Rule = r.Name
			break
		}
	}
	return v
}
