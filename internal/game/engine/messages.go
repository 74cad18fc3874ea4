package engine

import (
	"fmt"
	"strings"

	"github.com/MrWong99/dictee/internal/game/reward"
	"github.com/MrWong99/dictee/internal/game/scoring"
	"github.com/MrWong99/dictee/internal/game/session"
)

func mention(userID string) string {
	return "<@" + userID + ">"
}

func hearts(lives int) string {
	if lives <= 0 {
		return "none"
	}
	return strings.Repeat("❤️", lives)
}

func announce(st session.State, t Timing, dialect string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎧 **Round %d/%d** for %s (%s, %s)", st.Round, t.MaxRounds, mention(st.PlayerID), st.Difficulty, st.Language.Name())
	if dialect != "" {
		fmt.Fprintf(&b, "\nAccent: %s", dialect)
	}
	b.WriteString("\nListen carefully!")
	return b.String()
}

func prompt(st session.State, t Timing) string {
	return fmt.Sprintf("✍️ %s, type what you heard. You have %d seconds.", mention(st.PlayerID), int(t.AnswerTimeout.Seconds()))
}

func verdict(st session.State, result string, accuracy int, submitted, answer string) string {
	switch result {
	case resultCorrect:
		return fmt.Sprintf("✅ Correct! Accuracy: %d%%\nAnswer: %s", accuracy, answer)
	case resultTimeout:
		return fmt.Sprintf("⌛ Time is up!\nAnswer: %s\nLives left: %s", answer, hearts(st.Lives))
	default:
		marked := scoring.Highlight(scoring.Words(submitted), scoring.Words(answer))
		return fmt.Sprintf("❌ Not quite. Accuracy: %d%%\nYou wrote: %s\nAnswer: %s\nLives left: %s",
			accuracy, marked, answer, hearts(st.Lives))
	}
}

func summary(st session.State, reason string, g reward.Grant) string {
	var b strings.Builder
	switch reason {
	case reasonWin:
		fmt.Fprintf(&b, "🏆 Well done %s, you made it through all %d rounds!", mention(st.PlayerID), st.Round)
	case reasonLoss:
		fmt.Fprintf(&b, "💀 No lives left, game over %s.", mention(st.PlayerID))
	case reasonAbandoned:
		fmt.Fprintf(&b, "👋 %s left the voice channel, game over.", mention(st.PlayerID))
	case reasonExhausted:
		fmt.Fprintf(&b, "📭 No more clips available for %s %s, game over.", st.Language.Name(), st.Difficulty)
	case reasonStopped:
		fmt.Fprintf(&b, "🛑 Session ended for %s.", mention(st.PlayerID))
	default:
		fmt.Fprintf(&b, "⚠️ Something went wrong, the game of %s was ended.", mention(st.PlayerID))
	}
	fmt.Fprintf(&b, "\nRight: %d | Wrong: %d", st.Right, st.Wrong)
	if reason != reasonStopped {
		fmt.Fprintf(&b, " | Reward: %d crumbs", g.Amount)
	}
	if g.BonusRoll {
		b.WriteString("\n🎲 Lucky you, a bonus roll was added to your profile!")
	}
	return b.String()
}
