package markbook

import (
	"math/big"
	"strconv"
)

// Average is the mean of the strictly positive values of key across weeks,
// rounded to one decimal. Zero and absent weeks are left out entirely; with
// no positive value the result is 0.
func Average(data MetricTable, weeks []string, key MetricKey) float64 {
	sum, n := 0, 0
	for _, w := range weeks {
		if v := data.Value(key, w); v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return roundTenths(float64(sum) / float64(n))
}

// roundTenths rounds the exact binary value of a non-negative x to one
// decimal, ties going up, the way Number.prototype.toFixed(1) does. So
// 23/20 (stored just below 1.15) gives 1.1 and 5/4 gives 1.3.
func roundTenths(x float64) float64 {
	r := new(big.Rat).SetFloat64(x)
	if r == nil {
		return x
	}
	r.Mul(r, big.NewRat(10, 1))
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if new(big.Int).Mul(m, big.NewInt(2)).Cmp(r.Denom()) >= 0 {
		q.Add(q, big.NewInt(1))
	}
	f, _ := new(big.Rat).SetFrac(q, big.NewInt(10)).Float64()
	return f
}

// Total sums key over every tracked week; absent weeks contribute 0.
func Total(data MetricTable, weeks []string, key MetricKey) int {
	sum := 0
	for _, w := range weeks {
		sum += data.Value(key, w)
	}
	return sum
}

// FormatAverage renders an average for display: one decimal, or "0" for no data.
func FormatAverage(avg float64) string {
	if avg == 0 {
		return "0"
	}
	return strconv.FormatFloat(avg, 'f', 1, 64)
}

type ChartPoint struct {
	Week        string `json:"week"`
	HousePoints int    `json:"housePoints"`
	Reading     int    `json:"reading"`
	Homework    int    `json:"homework"`
}

// Value returns the point's count for key.
func (p ChartPoint) Value(key MetricKey) int {
	switch key {
	case MetricHousePoints:
		return p.HousePoints
	case MetricReadingSessions:
		return p.Reading
	case MetricHomeworkCompleted:
		return p.Homework
	default:
		return 0
	}
}

// ChartSeries builds one point per week, in week order, for student.
func ChartSeries(student Student, weeks []string) []ChartPoint {
	out := make([]ChartPoint, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, ChartPoint{
			Week:        w,
			HousePoints: student.Data.Value(MetricHousePoints, w),
			Reading:     student.Data.Value(MetricReadingSessions, w),
			Homework:    student.Data.Value(MetricHomeworkCompleted, w),
		})
	}
	return out
}

type MetricSummary struct {
	Key     MetricKey `json:"key"`
	Average float64   `json:"average"`
	Total   int       `json:"total"`
}

type StudentSummary struct {
	ID      int             `json:"id"`
	Name    string          `json:"name"`
	House   string          `json:"house"`
	Status  string          `json:"status"`
	Metrics []MetricSummary `json:"metrics"`
}

// Overview summarises every student over the visible metrics of st.
func Overview(st State) []StudentSummary {
	visible := st.VisibleMetrics.Visible()
	out := make([]StudentSummary, 0, len(st.Students))
	for _, s := range st.Students {
		row := StudentSummary{
			ID:      s.ID,
			Name:    s.Name,
			House:   s.House,
			Status:  s.Status,
			Metrics: make([]MetricSummary, 0, len(visible)),
		}
		for _, k := range visible {
			row.Metrics = append(row.Metrics, MetricSummary{
				Key:     k,
				Average: Average(s.Data, st.Weeks, k),
				Total:   Total(s.Data, st.Weeks, k),
			})
		}
		out = append(out, row)
	}
	return out
}
