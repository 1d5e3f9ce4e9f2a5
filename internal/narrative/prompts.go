package narrative

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/uidpulse/internal/ai"
	"github.com/KaramelBytes/uidpulse/internal/analytics"
	"github.com/KaramelBytes/uidpulse/internal/dataset"
)

const systemRole = "You are a senior data strategy advisor to the Unique Identification Authority of India. " +
	"You interpret Aadhaar enrolment and update statistics for policy makers. Be concise and concrete."

func regionLabel(region string) string {
	if dataset.IsAllRegions(region) {
		return "All India"
	}
	return region
}

func kpiPrompt(k analytics.KPIs, region string) []ai.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Region: %s\n\n", regionLabel(region))
	b.WriteString("Data snapshot:\n")
	fmt.Fprintf(&b, "- Total enrolments: %d (the population base)\n", k.TotalEnrolments)
	fmt.Fprintf(&b, "- Demographic updates: %d (mobility: migration, marriage, name corrections)\n", k.TotalDemographicUpdates)
	fmt.Fprintf(&b, "- Biometric updates: %d (ageing and child to adult transitions)\n", k.TotalBiometricUpdates)
	fmt.Fprintf(&b, "- Update to enrolment ratio: %.2f\n\n", k.UpdateRatio)
	b.WriteString("Tasks:\n")
	b.WriteString("1. Say whether the region is in acquisition mode (enrolment heavy) or maintenance mode (update heavy).\n")
	b.WriteString("2. Interpret the demographic and biometric update mix as a societal signal.\n")
	b.WriteString("3. Flag stale identity data if enrolment is high while updates are near zero.\n\n")
	b.WriteString("Answer in 2 to 3 sentences about implications. Do not restate the numbers.")
	return []ai.Message{{Role: "system", Content: systemRole}, {Role: "user", Content: b.String()}}
}

func trendPrompt(tr analytics.Trend, csv string) []ai.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Series: %s, bucketed at %s.\n\n", tr.Kind.Label(), tr.Frequency)
	b.WriteString("Data (CSV):\n")
	b.WriteString(csv)
	b.WriteString("\nTasks:\n")
	b.WriteString("1. Identify seasonality tied to Indian calendar events such as school admissions or the financial year end.\n")
	b.WriteString("2. Point out spikes that do not look organic.\n")
	b.WriteString("3. Give a one sentence outlook for the next quarter.\n\n")
	b.WriteString("Format: lines starting with \"Primary driver:\", \"Anomaly:\" and \"Outlook:\".")
	return []ai.Message{{Role: "system", Content: systemRole}, {Role: "user", Content: b.String()}}
}

func policyPrompt(csv string) []ai.Message {
	var b strings.Builder
	b.WriteString("These districts exceed their service load thresholds:\n\n")
	b.WriteString(csv)
	b.WriteString("\nDraft a short decision note with three parts:\n")
	b.WriteString("Diagnosis: why these districts are under pressure.\n")
	b.WriteString("Immediate intervention: specific deployments per district.\n")
	b.WriteString("Long term fix: one policy change.\n")
	return []ai.Message{{Role: "system", Content: systemRole}, {Role: "user", Content: b.String()}}
}
