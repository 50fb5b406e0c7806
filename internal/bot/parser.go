package bot

import (
	"regexp"
	"strconv"
	"strings"

	"ranchhand/internal/ledger"
)

const prefix string = "!"

const (
	COMMAND_PAYOUT = iota
	COMMAND_WIPE   = iota
	COMMAND_PAID   = iota
	COMMAND_SETTLE = iota
)

const (
	PARSEID_OK                     = iota
	PARSEID_NO_BOT_PREFIX          = iota
	PARSEID_COMMAND_NOT_RECOGNISED = iota
)

type ParseResult struct {
	command int
	parseid int
}

// Parse decides if a message is a command for the bot.
// Messages without the prefix are game events, not commands
func Parse(message string) ParseResult {

	if !strings.HasPrefix(message, prefix) {
		return ParseResult{parseid: PARSEID_NO_BOT_PREFIX}
	}

	words := strings.Fields(strings.TrimSpace(message[len(prefix):]))
	if len(words) == 0 {
		return ParseResult{parseid: PARSEID_COMMAND_NOT_RECOGNISED}
	}

	switch words[0] {
	case "payout":
		// !payout
		return ParseResult{command: COMMAND_PAYOUT, parseid: PARSEID_OK}
	case "wipe":
		// !wipe
		return ParseResult{command: COMMAND_WIPE, parseid: PARSEID_OK}
	case "paid":
		// !paid
		return ParseResult{command: COMMAND_PAID, parseid: PARSEID_OK}
	case "settle":
		// !settle
		return ParseResult{command: COMMAND_SETTLE, parseid: PARSEID_OK}
	default:
		return ParseResult{parseid: PARSEID_COMMAND_NOT_RECOGNISED}
	}
}

// Game event patterns. The collection message carries three independent
// pieces: the player mention with a trailing in-game name, the resource
// kind, and the quantity tied to a ranch id. All three have to match
var (
	playerRegex   = regexp.MustCompile(`(<@!?\d+>)\s\d+\s([^\n]+)`)
	itemRegex     = regexp.MustCompile(`(?i)(Eggs|Milk)\sAdded`)
	quantityRegex = regexp.MustCompile(`(?i)Added\s(?:Eggs|Milk)\sto\sranch\sid\s\d+\s:\s(\d+)`)

	cattleGateRegex = regexp.MustCompile(`(?i)Cattle Sale|Bought Cattle|Sold`)
	purchaseRegex   = regexp.MustCompile(`(?i)Player\s\**(.+?)\**\sbought\s\**(\d+)\**\s\**(.+?)\**\scattle\sfor\s\**([\d.$]+)\**`)
	saleRegex       = regexp.MustCompile(`(?i)Player\s\**(.+?)\**\ssold\s\**(\d+)\**\s\**(.+?)\**\sfor\s\**([\d.$]+)\**`)

	mentionRegex = regexp.MustCompile(`^<@!?(\d+)>$`)
)

// AccrualEvent is one parsed resource collection
type AccrualEvent struct {
	Identity string // normalized mention, stable per player
	Name     string // in-game name carried by the message
	Resource ledger.Resource
	Quantity int
}

// ParseAccrual extracts a collection event from raw message text.
// Parsing is best effort: a miss on any pattern discards the event
func ParseAccrual(text string) (AccrualEvent, bool) {

	playerMatch := playerRegex.FindStringSubmatch(text)
	itemMatch := itemRegex.FindStringSubmatch(text)
	quantityMatch := quantityRegex.FindStringSubmatch(text)
	if playerMatch == nil || itemMatch == nil || quantityMatch == nil {
		return AccrualEvent{}, false
	}

	quantity, err := strconv.Atoi(quantityMatch[1])
	if err != nil {
		return AccrualEvent{}, false
	}

	return AccrualEvent{
		Identity: NormalizeMention(strings.TrimSpace(playerMatch[1])),
		Name:     strings.TrimSpace(playerMatch[2]),
		Resource: ledger.Resource(strings.ToLower(itemMatch[1])),
		Quantity: quantity,
	}, true
}

const (
	DIRECTION_BOUGHT = "bought"
	DIRECTION_SOLD   = "sold"
)

// CattleTransaction is a parsed purchase or sale. It only triggers a
// herd-log notification; the ledger is not involved
type CattleTransaction struct {
	Player    string
	Count     int
	Type      string
	Price     string
	Direction string
}

// ParseCattleTransaction recognises "bought"/"sold" phrasing
func ParseCattleTransaction(text string) (CattleTransaction, bool) {

	if !cattleGateRegex.MatchString(text) {
		return CattleTransaction{}, false
	}

	var match []string
	var direction string
	if match = purchaseRegex.FindStringSubmatch(text); match != nil {
		direction = DIRECTION_BOUGHT
	} else if match = saleRegex.FindStringSubmatch(text); match != nil {
		direction = DIRECTION_SOLD
	} else {
		return CattleTransaction{}, false
	}

	count, err := strconv.Atoi(match[2])
	if err != nil {
		return CattleTransaction{}, false
	}

	return CattleTransaction{
		Player:    match[1],
		Count:     count,
		Type:      match[3],
		Price:     match[4],
		Direction: direction,
	}, true
}

// NormalizeMention turns the nickname mention form <@!id> into <@id>,
// so the same player always maps to the same ledger key
func NormalizeMention(mention string) string {
	if m := mentionRegex.FindStringSubmatch(mention); m != nil {
		return "<@" + m[1] + ">"
	}
	return mention
}

// MentionUserID extracts the user id out of a mention
func MentionUserID(mention string) (string, bool) {
	if m := mentionRegex.FindStringSubmatch(mention); m != nil {
		return m[1], true
	}
	return "", false
}
