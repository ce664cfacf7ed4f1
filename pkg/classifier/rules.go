package classifier

import (
	"context"
	"fmt"
	"regexp"
)

// Memo sentinels used when a notification carries no usable memo.
const (
	NoMemoFound = "No Memo Found"
	FillMeIn    = "Fill me in!"
)

// amountPattern captures whole dollars with an optional two-digit cents part.
const amountPattern = `(\d+(?:\.\d{2})?)`

var (
	sentMoneyRegex        = regexp.MustCompile(`You sent \$` + amountPattern + ` to (?:(.*) for (.*)|(.*))`)
	receivedMoneyRegex    = regexp.MustCompile(`(.*) sent you \$` + amountPattern + `(?: for (.*))?`)
	cashCardPurchaseRegex = regexp.MustCompile(`You spent \$` + amountPattern + ` at (?:(.*)\. Your.*|(.*))`)
	amazonOrderRegex      = regexp.MustCompile(`Your Amazon.* order of (.*)`)
	amazonTotalRegex      = regexp.MustCompile(`Order Total: \$` + amountPattern)
)

// Account identifies which configured ledger account a rule posts to.
type Account int

const (
	AccountChecking Account = iota + 1
	AccountSquareCash
	AccountAmazonVisa
)

func (a Account) String() string {
	switch a {
	case AccountChecking:
		return "checking_account_id"
	case AccountSquareCash:
		return "square_cash_account_id"
	case AccountAmazonVisa:
		return "amazon_visa_account_id"
	default:
		return fmt.Sprintf("Account(%d)", int(a))
	}
}

// Capture is a value extracted by a rule that may be absent.
// An empty capture counts as absent.
type Capture struct {
	value string
	ok    bool
}

// Captured wraps an extracted value.
func Captured(v string) Capture {
	return Capture{value: v, ok: v != ""}
}

// Value returns the captured value and whether it is present.
func (c Capture) Value() (string, bool) {
	return c.value, c.ok
}

// Or returns the captured value, or fallback if it is absent.
func (c Capture) Or(fallback string) string {
	if c.ok {
		return c.value
	}
	return fallback
}

// First returns the first present capture of cs.
func First(cs ...Capture) Capture {
	for _, c := range cs {
		if c.ok {
			return c
		}
	}
	return Capture{}
}

// Fields is the raw result of a matching rule, before defaults are applied.
type Fields struct {
	Amount Capture
	// Outgoing marks money leaving the tracked balance.
	Outgoing bool
	Payee    Capture
	Memo     Capture
	// MemoDefault replaces an absent memo. Empty means the memo is required.
	MemoDefault string
	Account     Account
}

// Rule is a single pattern with its field extraction and account routing.
type Rule interface {
	Name() string
	// Match reports whether the rule applies to the notification and, if
	// so, what it extracted. body is only called by rules that need it.
	Match(ctx context.Context, subject string, body BodyFunc) (Fields, bool, error)
}

// group returns submatch i as a capture. Non-participating groups are absent.
func group(matches []string, i int) Capture {
	if i >= len(matches) {
		return Capture{}
	}
	return Captured(matches[i])
}

type sentMoney struct{}

func (sentMoney) Name() string { return "sent-money" }

func (sentMoney) Match(_ context.Context, subject string, _ BodyFunc) (Fields, bool, error) {
	m := sentMoneyRegex.FindStringSubmatch(subject)
	if m == nil {
		return Fields{}, false, nil
	}
	return Fields{
		Amount:      group(m, 1),
		Outgoing:    true,
		Payee:       First(group(m, 2), group(m, 4)),
		Memo:        group(m, 3),
		MemoDefault: NoMemoFound,
		Account:     AccountChecking,
	}, true, nil
}

type receivedMoney struct{}

func (receivedMoney) Name() string { return "received-money" }

func (receivedMoney) Match(_ context.Context, subject string, _ BodyFunc) (Fields, bool, error) {
	m := receivedMoneyRegex.FindStringSubmatch(subject)
	if m == nil {
		return Fields{}, false, nil
	}
	return Fields{
		Amount:      group(m, 2),
		Payee:       group(m, 1),
		Memo:        group(m, 3),
		MemoDefault: NoMemoFound,
		Account:     AccountChecking,
	}, true, nil
}

type cashCardPurchase struct{}

func (cashCardPurchase) Name() string { return "cash-card" }

func (cashCardPurchase) Match(_ context.Context, subject string, _ BodyFunc) (Fields, bool, error) {
	m := cashCardPurchaseRegex.FindStringSubmatch(subject)
	if m == nil {
		return Fields{}, false, nil
	}
	return Fields{
		Amount:      group(m, 1),
		Outgoing:    true,
		Payee:       First(group(m, 2), group(m, 3)),
		MemoDefault: FillMeIn,
		Account:     AccountSquareCash,
	}, true, nil
}

type amazonOrder struct{}

func (amazonOrder) Name() string { return "amazon-order" }

// Match takes the item description from the subject and the order total
// from the first message body. A body without a total still counts as a
// match, so the classification fails instead of falling through.
func (amazonOrder) Match(ctx context.Context, subject string, body BodyFunc) (Fields, bool, error) {
	m := amazonOrderRegex.FindStringSubmatch(subject)
	if m == nil {
		return Fields{}, false, nil
	}

	fields := Fields{
		Outgoing: true,
		Payee:    Captured("Amazon"),
		Memo:     group(m, 1),
		Account:  AccountAmazonVisa,
	}
	if body == nil {
		return fields, true, nil
	}

	text, err := body(ctx)
	if err != nil {
		return Fields{}, false, fmt.Errorf("fetching message body: %w", err)
	}
	if total := amazonTotalRegex.FindStringSubmatch(text); total != nil {
		fields.Amount = group(total, 1)
	}
	return fields, true, nil
}

// DefaultRules returns the built-in rules in priority order.
// The Amazon rule is appended only when amazon is true.
func DefaultRules(amazon bool) []Rule {
	rules := []Rule{sentMoney{}, receivedMoney{}, cashCardPurchase{}}
	if amazon {
		rules = append(rules, amazonOrder{})
	}
	return rules
}
