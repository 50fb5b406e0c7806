package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"ranchhand/internal/ledger"
	"ranchhand/internal/settlement"

	"github.com/bwmarrin/discordgo"
)

const (
	colorSummary  int = 0x00ff00
	colorPurchase int = 0xff0000 // red for money leaving the ranch
	colorSale     int = 0x00ff00
)

const footerText = "Ranch Management System"

// SummaryEmbed renders the live leaderboard of a ranch: one field per
// player with counters and profit, total profit in the footer.
// Labels maps identities to display names; missing entries fall back
// to the raw mention
func SummaryEmbed(ranchName string, ldg ledger.Ledger, period ledger.TrackingPeriod, rate float64, labels map[string]string) *discordgo.MessageEmbed {

	embed := discordgo.MessageEmbed{
		Title:       strings.ToUpper(ranchName),
		Description: fmt.Sprintf("🥛 Tracking: %s 🥚", period),
		Color:       colorSummary,
		Timestamp:   time.Now().Format(time.RFC3339),
	}

	if len(ldg) == 0 {
		embed.Description += "\nNo player stats available."
		return &embed
	}

	identities := make([]string, 0, len(ldg))
	for identity := range ldg {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	for _, identity := range identities {
		accrual := ldg[identity]
		name := identity
		if label, ok := labels[identity]; ok && label != "" {
			name = label
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  fmt.Sprintf("🥛 Milk: %d\n🥚 Eggs: %d\n💰 Profit: $%.2f", accrual.Milk, accrual.Eggs, accrual.Profit(rate)),
			Inline: true,
		})
	}

	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("💰 Total Profit: $%.2f", ldg.Profit(rate)),
	}
	return &embed
}

// PayoutEmbed renders a payout batch. Paid records get a check mark;
// the embed is edited in place as players get marked paid
func PayoutEmbed(batch *settlement.Batch) *discordgo.MessageEmbed {

	var lines []string
	for _, record := range batch.Records {
		mark := "🤠"
		if record.Paid {
			mark = "✅"
		}
		lines = append(lines, fmt.Sprintf("%s **%s**: **$%.2f**", mark, record.Label, record.Total))
	}

	description := fmt.Sprintf("📅 **Dates:** %s\n\n%s", batch.Period, strings.Join(lines, "\n"))
	if batch.Settled() {
		description += "\n\nAll payouts settled!"
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("🥛 %s Payout 🥚", batch.Ranch),
		Description: description,
		Color:       colorSummary,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "💡 This payout is for milk and eggs only!"},
	}
}

// CattleEmbed renders a herd-log notification for a cattle transaction
func CattleEmbed(ranchName string, tx CattleTransaction) *discordgo.MessageEmbed {

	action := "Sold"
	color := colorSale
	if tx.Direction == DIRECTION_BOUGHT {
		action = "Purchased"
		color = colorPurchase
	}

	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("**%s Cattle %s**", ranchName, action),
		Description: fmt.Sprintf("**%s** %s **%d %s** for **%s**", tx.Player, tx.Direction, tx.Count, tx.Type, tx.Price),
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: footerText},
	}
}
