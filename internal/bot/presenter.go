package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ranchhand/internal/config"
	"ranchhand/internal/settlement"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const choicePrefix = "paidchoice"

// Presenter turns ledger and settlement state into discord messages.
// It implements the settlement engine's presenter port
type Presenter struct {
	discord   *discordgo.Session
	ranches   map[string]config.RanchConfig
	noticeTTL time.Duration

	mu      sync.Mutex
	pending map[string]chan string // open choice offers, keyed by choice id
}

func CreatePresenter(discord *discordgo.Session, ranches []config.RanchConfig, noticeTTL time.Duration) *Presenter {

	presenter := Presenter{
		discord:   discord,
		ranches:   map[string]config.RanchConfig{},
		noticeTTL: noticeTTL,
		pending:   map[string]chan string{},
	}
	for _, ranch := range ranches {
		presenter.ranches[ranch.Name] = ranch
	}
	return &presenter
}

// RenderPayoutBatch posts the batch to the ranch's payout channel and
// returns a reference to the message for later edits
func (presenter *Presenter) RenderPayoutBatch(batch *settlement.Batch) (settlement.MessageRef, error) {

	ranch, ok := presenter.ranches[batch.Ranch]
	if !ok || ranch.PayoutChannelID == "" {
		return settlement.MessageRef{}, fmt.Errorf("no payout channel configured for ranch %s", batch.Ranch)
	}

	message, err := presenter.discord.ChannelMessageSendEmbed(ranch.PayoutChannelID, PayoutEmbed(batch))
	if err != nil {
		return settlement.MessageRef{}, fmt.Errorf("could not send payout message for ranch %s: %w", batch.Ranch, err)
	}
	return settlement.MessageRef{ChannelID: ranch.PayoutChannelID, MessageID: message.ID}, nil
}

// UpdatePayoutBatch edits the rendered payout message in place
func (presenter *Presenter) UpdatePayoutBatch(batch *settlement.Batch) error {

	ref := batch.Message
	if ref.MessageID == "" {
		return fmt.Errorf("payout batch for ranch %s has no rendered message", batch.Ranch)
	}
	if _, err := presenter.discord.ChannelMessageEditEmbed(ref.ChannelID, ref.MessageID, PayoutEmbed(batch)); err != nil {
		return fmt.Errorf("could not edit payout message for ranch %s: %w", batch.Ranch, err)
	}
	return nil
}

// OfferChoice posts a button per unpaid player in the payout channel
// and waits for the first selection. When the context expires the
// offer lapses: the message is removed and late clicks are ignored
func (presenter *Presenter) OfferChoice(ctx context.Context, ranch string, records []*settlement.Record) (string, error) {

	cfg, ok := presenter.ranches[ranch]
	if !ok || cfg.PayoutChannelID == "" {
		return "", fmt.Errorf("no payout channel configured for ranch %s", ranch)
	}

	choiceid := uuid.NewString()
	components, err := choiceComponents(choiceid, records)
	if err != nil {
		return "", err
	}

	selected := make(chan string, 1)
	presenter.mu.Lock()
	presenter.pending[choiceid] = selected
	presenter.mu.Unlock()
	defer func() {
		presenter.mu.Lock()
		delete(presenter.pending, choiceid)
		presenter.mu.Unlock()
	}()

	message, err := presenter.discord.ChannelMessageSendComplex(cfg.PayoutChannelID, &discordgo.MessageSend{
		Content:    fmt.Sprintf("Pick the player to mark as paid for **%s**:", ranch),
		Components: components,
	})
	if err != nil {
		return "", fmt.Errorf("could not send choice message for ranch %s: %w", ranch, err)
	}
	defer presenter.deleteMessage(cfg.PayoutChannelID, message.ID)

	select {
	case identity := <-selected:
		return identity, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// ResolveChoice feeds a selection into an open offer. Returns false if
// the offer already lapsed
func (presenter *Presenter) ResolveChoice(choiceid string, identity string) bool {

	presenter.mu.Lock()
	defer presenter.mu.Unlock()
	selected, ok := presenter.pending[choiceid]
	if !ok {
		return false
	}
	select {
	case selected <- identity:
		return true
	default:
		// a selection already went through
		return false
	}
}

// DisplayLabel resolves a mention into the member's server nickname,
// falling back to the raw mention
func (presenter *Presenter) DisplayLabel(ranch string, identity string) string {

	userid, ok := MentionUserID(identity)
	if !ok {
		return identity
	}
	cfg, ok := presenter.ranches[ranch]
	if !ok {
		return identity
	}

	channel, err := presenter.discord.Channel(cfg.TargetChannelID)
	if err != nil || channel.GuildID == "" {
		return identity
	}
	member, err := presenter.discord.GuildMember(channel.GuildID, userid)
	if err != nil {
		return identity
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil && member.User.Username != "" {
		return member.User.Username
	}
	return identity
}

// NotifyCattle posts a cattle transaction to the ranch's herd-log channel
func (presenter *Presenter) NotifyCattle(ranch string, tx CattleTransaction) {

	cfg, ok := presenter.ranches[ranch]
	if !ok || cfg.HerdLogChannelID == "" {
		log.Warn().Str("ranch", ranch).Msg("No herd-log channel configured")
		return
	}
	ResponseEmbed{*CattleEmbed(ranch, tx)}.Send(cfg.HerdLogChannelID, presenter.discord)
}

// Notice sends a transient message that retracts itself after the
// configured delay
func (presenter *Presenter) Notice(channelid string, content string) {

	message, err := presenter.discord.ChannelMessageSend(channelid, content)
	if err != nil {
		log.Error().Err(err).Str("channel", channelid).Msg("Could not send notice")
		return
	}
	time.AfterFunc(presenter.noticeTTL, func() {
		presenter.deleteMessage(channelid, message.ID)
	})
}

func (presenter *Presenter) deleteMessage(channelid string, messageid string) {
	if err := presenter.discord.ChannelMessageDelete(channelid, messageid); err != nil {
		log.Debug().Err(err).Str("channel", channelid).Msg("Could not delete message")
	}
}

// choiceComponents lays the unpaid players out as button rows,
// five per row, as many as discord allows
func choiceComponents(choiceid string, records []*settlement.Record) ([]discordgo.MessageComponent, error) {

	if len(records) == 0 {
		return nil, fmt.Errorf("nothing to offer")
	}
	if len(records) > 25 {
		records = records[:25]
	}

	var components []discordgo.MessageComponent
	var row discordgo.ActionsRow
	for _, record := range records {
		row.Components = append(row.Components, discordgo.Button{
			Label:    record.Label,
			Style:    discordgo.SecondaryButton,
			CustomID: fmt.Sprintf("%s:%s:%s", choicePrefix, choiceid, record.Identity),
		})
		if len(row.Components) == 5 {
			components = append(components, row)
			row = discordgo.ActionsRow{}
		}
	}
	if len(row.Components) > 0 {
		components = append(components, row)
	}
	return components, nil
}
