package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/example/errbook/internal/knowledge"
	"github.com/example/errbook/pkg/models"
)

// Callback actions of the candidate buttons
const (
	actionConfirm = "ok"
	actionDiscard = "no"
	allCandidates = "all"
)

var errUsage = errors.New("wrong arguments")

// parseCheckArgs splits "/check sentence || answer"
func parseCheckArgs(args string) (string, string, error) {
	sentence, answer, found := strings.Cut(args, "||")
	sentence, answer = strings.TrimSpace(sentence), strings.TrimSpace(answer)
	if !found || sentence == "" || answer == "" {
		return "", "", errUsage
	}
	return sentence, answer, nil
}

// parseIDArg reads a point ID followed by optional free text
func parseIDArg(args string) (int64, string, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, "", errUsage
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, "", errUsage
	}
	return id, strings.Join(fields[1:], " "), nil
}

// parseSetLimit reads "n on|off"
func parseSetLimit(args string) (int, bool, error) {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return 0, false, errUsage
	}
	limit, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, false, errUsage
	}
	switch strings.ToLower(fields[1]) {
	case "on":
		return limit, true, nil
	case "off":
		return limit, false, nil
	}
	return 0, false, errUsage
}

// parseOptionalInts reads up to n non-negative integers; missing ones are
// set to missing
func parseOptionalInts(args string, n, missing int) ([]int, error) {
	fields := strings.Fields(args)
	if len(fields) > n {
		return nil, errUsage
	}
	out := make([]int, n)
	for i := range out {
		out[i] = missing
	}
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 0 {
			return nil, errUsage
		}
		out[i] = v
	}
	return out, nil
}

func encodeCallback(action, token string, id int) string {
	target := allCandidates
	if id > 0 {
		target = strconv.Itoa(id)
	}
	return action + ":" + token + ":" + target
}

// decodeCallback returns nil ids for "all"
func decodeCallback(data string) (string, string, []int, error) {
	parts := strings.Split(data, ":")
	if len(parts) != 3 || (parts[0] != actionConfirm && parts[0] != actionDiscard) || parts[1] == "" {
		return "", "", nil, fmt.Errorf("unknown callback %q", data)
	}
	if parts[2] == allCandidates {
		return parts[0], parts[1], nil, nil
	}
	id, err := strconv.Atoi(parts[2])
	if err != nil || id <= 0 {
		return "", "", nil, fmt.Errorf("unknown callback %q", data)
	}
	return parts[0], parts[1], []int{id}, nil
}

func candidateButtons(token string, candidates []models.PendingCandidate) [][]MenuButton {
	var rows [][]MenuButton
	for _, c := range candidates {
		rows = append(rows, []MenuButton{
			{Text: fmt.Sprintf("✅ %d", c.ID), CallbackData: encodeCallback(actionConfirm, token, c.ID)},
			{Text: fmt.Sprintf("❌ %d", c.ID), CallbackData: encodeCallback(actionDiscard, token, c.ID)},
		})
	}
	if len(candidates) > 1 {
		rows = append(rows, []MenuButton{
			{Text: "✅ Save all", CallbackData: encodeCallback(actionConfirm, token, 0)},
			{Text: "❌ Discard all", CallbackData: encodeCallback(actionDiscard, token, 0)},
		})
	}
	return rows
}

func formatSubmission(sub *knowledge.Submission) string {
	var sb strings.Builder
	if sub.IsCorrect {
		sb.WriteString("✅ Correct!\n")
	} else {
		sb.WriteString("❌ Not quite.\n")
	}
	if len(sub.Candidates) > 0 {
		sb.WriteString("\nMistakes found, choose which to keep:\n")
		for _, c := range sub.Candidates {
			fmt.Fprintf(&sb, "\n%d. [%s] %s\n   %q ➡️ %q\n", c.ID, c.Category, c.KeyPoint, c.OriginalPhrase, c.Correction)
			if c.Explanation != "" {
				fmt.Fprintf(&sb, "   %s\n", c.Explanation)
			}
		}
	}
	if n := len(sub.Rejected); n > 0 {
		fmt.Fprintf(&sb, "\n(%d unclear %s from the grader skipped)", n, pluralize(n, "remark", "remarks"))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatCommitResult(res *knowledge.CommitResult) string {
	var sb strings.Builder
	for _, o := range res.Outcomes {
		switch o.Status {
		case knowledge.StatusCommitted:
			fmt.Fprintf(&sb, "✅ %d saved as point #%d\n", o.CandidateID, o.PointID)
		case knowledge.StatusMerged:
			fmt.Fprintf(&sb, "🔁 %d merged into point #%d\n", o.CandidateID, o.PointID)
		case knowledge.StatusQuotaRejected:
			fmt.Fprintf(&sb, "⏳ %d not saved: daily limit reached, it stays pending\n", o.CandidateID)
		case knowledge.StatusFailed:
			fmt.Fprintf(&sb, "⚠️ %d not saved, try again\n", o.CandidateID)
		default:
			fmt.Fprintf(&sb, "🚫 %d skipped: %s\n", o.CandidateID, o.Reason)
		}
	}
	if sb.Len() == 0 {
		return "Nothing to save."
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPoint(kp *models.KnowledgePoint) string {
	return fmt.Sprintf("#%d [%s] %s: %q ➡️ %q (mastery %.0f%%)",
		kp.ID, kp.Category, kp.KeyPoint, kp.OriginalPhrase, kp.Correction, kp.MasteryLevel*100)
}

func formatPointDetails(d *knowledge.PointDetails, loc *time.Location) string {
	kp := d.Point
	var sb strings.Builder
	sb.WriteString(formatPoint(kp))
	sb.WriteString("\n")
	if kp.Subtype != kp.KeyPoint {
		fmt.Fprintf(&sb, "Subtype: %s\n", kp.Subtype)
	}
	if kp.Explanation != "" {
		fmt.Fprintf(&sb, "%s\n", kp.Explanation)
	}
	fmt.Fprintf(&sb, "Mistakes: %d, correct: %d, version %d\n", kp.MistakeCount, kp.CorrectCount, kp.VersionNumber)
	if kp.NextReview != nil {
		fmt.Fprintf(&sb, "Next review: %s\n", kp.NextReview.In(loc).Format("2006-01-02 15:04"))
	}
	if kp.IsDeleted {
		sb.WriteString("🗑 Deleted")
		if kp.DeletedReason != "" {
			fmt.Fprintf(&sb, ": %s", kp.DeletedReason)
		}
		sb.WriteString("\n")
	}
	if d.Original != nil {
		fmt.Fprintf(&sb, "\nFirst seen in: %s\nYou wrote: %s\n", d.Original.SourceSentence, d.Original.LearnerAnswer)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPoints(title string, points []models.KnowledgePoint, max int) string {
	if len(points) == 0 {
		return title + "\n\nNothing here yet."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d)\n", title, len(points))
	for i := range points {
		if max > 0 && i == max {
			fmt.Fprintf(&sb, "\n…and %d more", len(points)-max)
			break
		}
		sb.WriteString("\n" + formatPoint(&points[i]))
	}
	return sb.String()
}

var reasonLabels = map[models.QueueReason]string{
	models.ReasonDueReview:   "due",
	models.ReasonLowMastery:  "weak",
	models.ReasonRecentError: "recent",
}

func formatQueue(entries []models.PracticeQueueEntry) string {
	if len(entries) == 0 {
		return "🎉 Nothing to review right now."
	}
	var sb strings.Builder
	sb.WriteString("📚 Up next:\n")
	for i, e := range entries {
		fmt.Fprintf(&sb, "\n%d. %s · %s", i+1, formatPoint(e.Point), reasonLabels[e.Reason])
	}
	return sb.String()
}

func formatLimitStatus(s *models.DailyLimitStatus) string {
	var sb strings.Builder
	state := "on"
	if !s.Enabled {
		state = "off"
	}
	fmt.Fprintf(&sb, "📅 %s, daily limit %d (%s)\n", s.Day, s.Limit, state)
	for _, c := range models.Categories {
		used, ok := s.UsedByCategory[c]
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n%s: %d used, %d left", c, used, s.Remaining[c])
	}
	return sb.String()
}

func formatRecommendation(r *models.Recommendation) string {
	var sb strings.Builder
	sb.WriteString("🧭 Recommendations\n\n")
	if len(r.FocusAreas) == 0 {
		sb.WriteString("No recent mistakes, keep going.\n")
	} else {
		areas := make([]string, len(r.FocusAreas))
		for i, a := range r.FocusAreas {
			areas[i] = string(a)
		}
		fmt.Fprintf(&sb, "Focus on: %s\n", strings.Join(areas, ", "))
	}
	fmt.Fprintf(&sb, "Suggested difficulty: %d/5\n", r.SuggestedDifficulty)
	fmt.Fprintf(&sb, "Due within a day: %d\n", r.NextReviewCount)
	fmt.Fprintf(&sb, "Weak points: %d", r.LowMasteryCount)
	return sb.String()
}

func formatStats(s *models.Statistics) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 %d active %s, %d deleted\n", s.ActivePoints, pluralize(s.ActivePoints, "point", "points"), s.DeletedPoints)
	fmt.Fprintf(&sb, "Due now: %d\nAverage mastery: %.0f%%\n", s.DueNow, s.AverageMastery*100)
	for _, c := range models.Categories {
		if n := s.ByCategory[c]; n > 0 {
			fmt.Fprintf(&sb, "\n%s: %d", c, n)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
