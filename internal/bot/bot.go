package bot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"ranchhand/internal/common"
	"ranchhand/internal/config"
	"ranchhand/internal/ledger"
	"ranchhand/internal/settlement"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// How often the scheduler gets a chance to fire
const mainCycle = 30 * time.Second

type Bot struct {
	cfg        *config.Config
	discord    *discordgo.Session
	ledgers    *ledger.Store
	engine     *settlement.Engine
	presenter  *Presenter
	payoutDays []time.Weekday

	// Summary embeds get edited on every accrual event; bursts of
	// events are throttled to stay clear of discord's limits
	editLimiter    *common.RateLimiter
	payoutExecutor common.TimedExecutor

	mu        sync.Mutex
	summaries map[string]string // ranch name -> summary message id
}

func CreateBot(cfg *config.Config) (*Bot, error) {

	// Create session
	discord, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("could not create discord session: %w", err)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent |
		discordgo.IntentsGuildMembers

	bot := Bot{cfg: cfg, discord: discord}
	bot.payoutDays = cfg.PayoutWeekdays()
	bot.ledgers = ledger.CreateStore(cfg.DataFiles())
	bot.presenter = CreatePresenter(discord, cfg.Ranches, cfg.Payout.NoticeTTL)
	bot.engine = settlement.CreateEngine(settlement.Config{
		Ranches:       cfg.RanchNames(),
		Rate:          cfg.Payout.Rate,
		PayoutDays:    bot.payoutDays,
		Policy:        settlement.ResetPolicy(cfg.Payout.ResetPolicy),
		WipeDelay:     cfg.Payout.WipeDelay,
		ChoiceTimeout: cfg.Payout.ChoiceTimeout,
	}, bot.ledgers, settlement.CreateSnapshotStore(cfg.Payout.SnapshotDir), bot.presenter)
	bot.editLimiter = common.NewRateLimiter([]common.Restriction{{Requests: 5, Duration: 10 * time.Second}})
	bot.summaries = map[string]string{}

	return &bot, nil
}

func (bot *Bot) Run() error {

	// Event handlers
	bot.discord.AddHandler(bot.Receive)
	bot.discord.AddHandler(bot.ReceiveInteraction)

	// Open session
	if err := bot.discord.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	defer bot.discord.Close()

	log.Info().Str("user", bot.discord.State.User.Username).Msg("Logged in")
	bot.ensureSummaries()

	// Scheduled payout trigger
	bot.payoutExecutor = common.NewTimedExecutor(bot.untilNextPayout(), bot.scheduledPayout)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(mainCycle)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bot.payoutExecutor.Execute()
			case <-stop:
				return
			}
		}
	}()

	// keep the bot running until there is an os interruption (ctrl + C)
	log.Info().Msg("Bot is running")
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	<-c

	return nil
}

func (bot *Bot) Receive(discord *discordgo.Session, message *discordgo.MessageCreate) {

	// Reject webhook messages without an author, and my own
	if message.Author == nil || message.Author.ID == discord.State.User.ID {
		return
	}

	// Parse the input provided and call the appropriate function
	parseResult := Parse(message.Content)
	switch parseResult.parseid {
	case PARSEID_OK:
		log.Info().Str("command", message.Content).Str("user", message.Author.ID).Msg("Command understood")
		switch parseResult.command {
		case COMMAND_PAYOUT:
			bot.payout(message)
		case COMMAND_WIPE:
			bot.wipe(discord, message)
		case COMMAND_PAID:
			bot.paid(message)
		case COMMAND_SETTLE:
			bot.settle(discord, message)
		default:
			panic(fmt.Sprintf("Command %d is not one of the possible ones", parseResult.command))
		}
		return
	case PARSEID_COMMAND_NOT_RECOGNISED:
		log.Debug().Str("content", message.Content).Msg("Unknown command, ignoring")
		return
	}

	// Not a command: game event path, only for monitored channels
	ranch, ok := bot.ranchBySource(message.ChannelID)
	if !ok {
		log.Debug().Str("channel", message.ChannelID).Msg("Message not from a monitored channel, skipping")
		return
	}

	text := eventText(message)
	if text == "" {
		log.Debug().Str("ranch", ranch.Name).Msg("No usable text found in message, skipping")
		return
	}

	if tx, ok := ParseCattleTransaction(text); ok {
		log.Info().Str("ranch", ranch.Name).Str("player", tx.Player).Str("direction", tx.Direction).Msg("Cattle transaction detected")
		bot.presenter.NotifyCattle(ranch.Name, tx)
		return
	}

	event, ok := ParseAccrual(text)
	if !ok {
		log.Debug().Str("ranch", ranch.Name).Msg("Message didn't match the expected format, skipping")
		return
	}
	log.Info().
		Str("ranch", ranch.Name).
		Str("player", event.Identity).
		Str("resource", string(event.Resource)).
		Int("quantity", event.Quantity).
		Msg("Recording collection")

	ldg, err := bot.ledgers.Apply(ranch.Name, event.Identity, event.Resource, event.Quantity)
	if err != nil {
		log.Error().Err(err).Str("ranch", ranch.Name).Msg("Could not record collection")
		return
	}
	bot.updateSummary(ranch, ldg)
}

// ReceiveInteraction resolves clicks on the mark-paid choice buttons
func (bot *Bot) ReceiveInteraction(discord *discordgo.Session, interaction *discordgo.InteractionCreate) {

	if interaction.Type != discordgo.InteractionMessageComponent {
		return
	}
	parts := strings.SplitN(interaction.MessageComponentData().CustomID, ":", 3)
	if len(parts) != 3 || parts[0] != choicePrefix {
		return
	}

	response := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	if !bot.presenter.ResolveChoice(parts[1], parts[2]) {
		// the offer lapsed; a late click gets a quiet shrug
		response = &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "This choice has expired.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		}
	}
	if err := discord.InteractionRespond(interaction.Interaction, response); err != nil {
		log.Debug().Err(err).Msg("Could not acknowledge interaction")
	}
}

func (bot *Bot) payout(message *discordgo.MessageCreate) {

	err := bot.engine.FullCycle()
	if err != nil {
		if errors.Is(err, settlement.ErrBusy) {
			bot.presenter.Notice(message.ChannelID, "A payout process is already active. Please wait for it to complete.")
			return
		}
		log.Error().Err(err).Msg("Payout process failed")
		bot.presenter.Notice(message.ChannelID, "An error occurred while processing payouts. Check logs.")
		return
	}

	if settlement.ResetPolicy(bot.cfg.Payout.ResetPolicy) == settlement.ResetTimed {
		bot.presenter.Notice(message.ChannelID,
			fmt.Sprintf("Payouts processed. Data will be wiped in %d seconds...", int(bot.cfg.Payout.WipeDelay.Seconds())))
		time.AfterFunc(bot.cfg.Payout.WipeDelay+time.Second, bot.refreshSummaries)
	} else {
		bot.presenter.Notice(message.ChannelID, "Payouts processed. Each ranch will be wiped once fully settled.")
	}
}

func (bot *Bot) wipe(discord *discordgo.Session, message *discordgo.MessageCreate) {

	if !bot.isAdmin(discord, message) {
		bot.presenter.Notice(message.ChannelID, "You do not have permission to use this command.")
		return
	}

	bot.engine.ResetAll()
	bot.refreshSummaries()
	bot.presenter.Notice(message.ChannelID, "Data files wiped successfully.")
}

// paid is the self-service path: the author marks their own payout
func (bot *Bot) paid(message *discordgo.MessageCreate) {

	ranch, ok := bot.ranchByPayout(message.ChannelID)
	if !ok {
		bot.presenter.Notice(message.ChannelID, "This command only works in a payout channel.")
		return
	}

	identity := "<@" + message.Author.ID + ">"
	err := bot.engine.MarkPaid(ranch.Name, identity)
	switch {
	case errors.Is(err, settlement.ErrNotFound):
		bot.presenter.Notice(message.ChannelID, "No unpaid payout found for you.")
	case err != nil:
		log.Error().Err(err).Str("ranch", ranch.Name).Msg("Could not mark payout as paid")
		bot.presenter.Notice(message.ChannelID, "An error occurred. Check logs.")
	default:
		bot.presenter.Notice(message.ChannelID, "Marked as paid 🤠")
	}
}

// settle is the admin path: pick any unpaid player from a button list
func (bot *Bot) settle(discord *discordgo.Session, message *discordgo.MessageCreate) {

	if !bot.isAdmin(discord, message) {
		bot.presenter.Notice(message.ChannelID, "You do not have permission to use this command.")
		return
	}
	ranch, ok := bot.ranchByPayout(message.ChannelID)
	if !ok {
		bot.presenter.Notice(message.ChannelID, "This command only works in a payout channel.")
		return
	}

	identity, err := bot.engine.AdminMarkPaid(context.Background(), ranch.Name)
	switch {
	case errors.Is(err, settlement.ErrAllSettled):
		bot.presenter.Notice(message.ChannelID, "Every payout is already settled.")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// the offer lapsed, nothing to tell anyone
		log.Debug().Str("ranch", ranch.Name).Msg("Mark-paid choice lapsed")
	case err != nil:
		log.Error().Err(err).Str("ranch", ranch.Name).Msg("Admin mark-paid failed")
		bot.presenter.Notice(message.ChannelID, "An error occurred. Check logs.")
	default:
		bot.presenter.Notice(message.ChannelID, fmt.Sprintf("%s marked as paid.", identity))
	}
}

func (bot *Bot) isAdmin(discord *discordgo.Session, message *discordgo.MessageCreate) bool {
	perms, err := discord.UserChannelPermissions(message.Author.ID, message.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("user", message.Author.ID).Msg("Could not check permissions")
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

// ensureSummaries finds or creates the live summary embed of every
// ranch, scanning the target channel for a previous one so a restart
// does not leave stale messages behind
func (bot *Bot) ensureSummaries() {

	for _, ranch := range bot.cfg.Ranches {
		if ranch.TargetChannelID == "" {
			continue
		}
		messages, err := bot.discord.ChannelMessages(ranch.TargetChannelID, 10, "", "", "")
		if err != nil {
			log.Error().Err(err).Str("ranch", ranch.Name).Msg("Could not fetch messages from target channel")
			continue
		}
		for _, message := range messages {
			if message.Author != nil && message.Author.ID == bot.discord.State.User.ID && len(message.Embeds) > 0 {
				log.Info().Str("ranch", ranch.Name).Str("message", message.ID).Msg("Found existing summary embed")
				bot.mu.Lock()
				bot.summaries[ranch.Name] = message.ID
				bot.mu.Unlock()
				break
			}
		}
		bot.renderSummary(ranch, bot.ledgers.Load(ranch.Name))
	}
}

func (bot *Bot) updateSummary(ranch config.RanchConfig, ldg ledger.Ledger) {
	if !bot.editLimiter.Allow() {
		log.Debug().Str("ranch", ranch.Name).Msg("Summary update throttled")
		return
	}
	bot.renderSummary(ranch, ldg)
}

func (bot *Bot) renderSummary(ranch config.RanchConfig, ldg ledger.Ledger) {

	if ranch.TargetChannelID == "" {
		return
	}
	period := ledger.CurrentTrackingPeriod(time.Now(), bot.payoutDays)
	labels := map[string]string{}
	for identity := range ldg {
		labels[identity] = bot.presenter.DisplayLabel(ranch.Name, identity)
	}
	embed := SummaryEmbed(ranch.Name, ldg, period, bot.cfg.Payout.Rate, labels)

	bot.mu.Lock()
	messageid := bot.summaries[ranch.Name]
	bot.mu.Unlock()

	if messageid != "" {
		if _, err := bot.discord.ChannelMessageEditEmbed(ranch.TargetChannelID, messageid, embed); err == nil {
			return
		} else {
			log.Warn().Err(err).Str("ranch", ranch.Name).Msg("Could not edit summary embed, sending a new one")
		}
	}
	message, err := bot.discord.ChannelMessageSendEmbed(ranch.TargetChannelID, embed)
	if err != nil {
		log.Error().Err(err).Str("ranch", ranch.Name).Msg("Could not send summary embed")
		return
	}
	bot.mu.Lock()
	bot.summaries[ranch.Name] = message.ID
	bot.mu.Unlock()
}

func (bot *Bot) refreshSummaries() {
	for _, ranch := range bot.cfg.Ranches {
		bot.renderSummary(ranch, bot.ledgers.Load(ranch.Name))
	}
}

func (bot *Bot) scheduledPayout() time.Duration {
	log.Info().Msg("Scheduled payout triggered")
	if err := bot.engine.FullCycle(); err != nil {
		log.Error().Err(err).Msg("Scheduled payout failed")
	}
	return bot.untilNextPayout()
}

// untilNextPayout computes the delay until the next payout instant:
// the configured time of day on the next payout weekday
func (bot *Bot) untilNextPayout() time.Duration {

	days := bot.payoutDays
	if len(days) == 0 {
		days = ledger.DefaultPayoutDays
	}
	hour, minute := bot.cfg.PayoutTimeOfDay()
	now := time.Now()

	for d := 0; d < 8; d++ {
		candidate := now.AddDate(0, 0, d)
		fire := time.Date(candidate.Year(), candidate.Month(), candidate.Day(), hour, minute, 0, 0, now.Location())
		if !fire.After(now) {
			continue
		}
		for _, day := range days {
			if fire.Weekday() == day {
				return fire.Sub(now)
			}
		}
	}
	return 7 * 24 * time.Hour
}

func (bot *Bot) ranchBySource(channelid string) (config.RanchConfig, bool) {
	for _, ranch := range bot.cfg.Ranches {
		if ranch.SourceChannelID == channelid {
			return ranch, true
		}
	}
	return config.RanchConfig{}, false
}

func (bot *Bot) ranchByPayout(channelid string) (config.RanchConfig, bool) {
	for _, ranch := range bot.cfg.Ranches {
		if ranch.PayoutChannelID == channelid {
			return ranch, true
		}
	}
	return config.RanchConfig{}, false
}

// eventText extracts the text to match: the message content, or the
// embed titles and descriptions when the content is empty
func eventText(message *discordgo.MessageCreate) string {
	if message.Content != "" {
		return message.Content
	}
	var parts []string
	for _, embed := range message.Embeds {
		parts = append(parts, embed.Title+"\n"+embed.Description)
	}
	return strings.Join(parts, "\n")
}
