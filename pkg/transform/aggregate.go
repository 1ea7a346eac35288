package transform

import (
	"fmt"
	"strings"

	"github.com/user/fieldbridge"
)

// Aggregate function names accepted by aggregate rules.
const (
	AggSum   = "SUM"
	AggAvg   = "AVG"
	AggCount = "COUNT"
	AggMax   = "MAX"
	AggMin   = "MIN"
)

// ReduceAggregate partitions rows by the group_by field of the rule (all rows
// form one partition when it is absent) and reduces each partition's
// sourceField values with the rule's function. The result has one row per
// partition: the partition's first row with sourceField replaced by the
// reduced value. Partition order follows first appearance.
func ReduceAggregate(rows []fieldbridge.Record, rule Rule, sourceField string) ([]fieldbridge.Record, error) {
	if rule.Kind != KindAggregate {
		return nil, fmt.Errorf("rule kind %q is not aggregate", rule.Kind)
	}
	function := strings.ToUpper(rule.cfg("function"))
	switch function {
	case AggSum, AggAvg, AggCount, AggMax, AggMin:
	default:
		return nil, fmt.Errorf("unknown aggregate function %q", rule.cfg("function"))
	}

	groupBy := rule.cfg("group_by")
	var order []string
	partitions := make(map[string][]fieldbridge.Record)

	for _, row := range rows {
		key := ""
		if groupBy != "" {
			key = fmt.Sprintf("%v", Value(row, groupBy))
		}
		if _, seen := partitions[key]; !seen {
			order = append(order, key)
		}
		partitions[key] = append(partitions[key], row)
	}

	out := make([]fieldbridge.Record, 0, len(order))
	for _, key := range order {
		part := partitions[key]
		reduced := reduce(part, sourceField, function)
		row := part[0].Clone()
		SetValue(row, sourceField, reduced)
		out = append(out, row)
	}
	return out, nil
}

func reduce(rows []fieldbridge.Record, field, function string) any {
	if function == AggCount {
		return int64(len(rows))
	}

	var sum float64
	var count int
	var best float64
	haveBest := false

	for _, row := range rows {
		f, ok := ToFloat64(Value(row, field))
		if !ok {
			continue
		}
		sum += f
		count++
		if !haveBest {
			best = f
			haveBest = true
			continue
		}
		if (function == AggMax && f > best) || (function == AggMin && f < best) {
			best = f
		}
	}

	switch function {
	case AggSum:
		return sum
	case AggAvg:
		if count == 0 {
			return nil
		}
		return sum / float64(count)
	case AggMax, AggMin:
		if !haveBest {
			return nil
		}
		return best
	}
	return nil
}
