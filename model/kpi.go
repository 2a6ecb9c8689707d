package model

// ApplyKPIDelta returns a copy of kpis where the entry matching d.ID has its
// value adjusted by d.Value. The input slice is never modified and unknown
// ids yield an unchanged copy. No clamping is applied.
func ApplyKPIDelta(kpis []KPI, d KPIDelta) []KPI {
	if kpis == nil {
		return nil
	}

	out := make([]KPI, len(kpis))
	copy(out, kpis)
	for i := range out {
		if out[i].ID == d.ID {
			out[i].Value += d.Value
		}
	}
	return out
}
