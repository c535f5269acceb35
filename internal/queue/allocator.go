package queue

import (
	"fmt"
	"strconv"

	"qms/counter-service/internal/models"
)

const maxTicketNumber = 99

// FormatTicket renders a prefix and number as a ticket, e.g. ("A", 7) -> "A07".
func FormatTicket(prefix string, number int) string {
	return fmt.Sprintf("%s%02d", prefix, number)
}

// Next returns the ticket the next order will receive.
func Next(state models.QueueState) string {
	prefix, number := normalizeCounter(state.CurrentPrefix, state.CurrentNumber)
	return FormatTicket(prefix, number)
}

// Advance moves the counter past the ticket returned by Next. After 99 the
// prefix advances and the number restarts at 1; after Z the prefix grows a
// letter (Z99 -> AA01, AZ99 -> BA01, ZZ99 -> AAA01).
func Advance(state models.QueueState) models.QueueState {
	prefix, number := normalizeCounter(state.CurrentPrefix, state.CurrentNumber)
	if number >= maxTicketNumber {
		state.CurrentPrefix = nextPrefix(prefix)
		state.CurrentNumber = 1
		return state
	}
	state.CurrentPrefix = prefix
	state.CurrentNumber = number + 1
	return state
}

// Allocate returns the next ticket together with the advanced state.
func Allocate(state models.QueueState) (string, models.QueueState) {
	return Next(state), Advance(state)
}

// AllocateUnused is Allocate that skips tickets already held by an order in
// state, so a counter left behind by client-allocated tickets cannot repeat one.
func AllocateUnused(state models.QueueState) (string, models.QueueState) {
	for {
		ticket, next := Allocate(state)
		if !ticketInUse(state, ticket) {
			return ticket, next
		}
		state = next
	}
}

// AdvancePast moves the counter beyond ticket when ticket is at or past it.
// Tickets that do not parse leave the counter alone.
func AdvancePast(state models.QueueState, ticket string) models.QueueState {
	prefix, number, ok := ParseTicket(ticket)
	if !ok {
		return state
	}
	current, currentNumber := normalizeCounter(state.CurrentPrefix, state.CurrentNumber)
	if CounterAfter(current, currentNumber, prefix, number) {
		return state
	}
	state.CurrentPrefix = prefix
	state.CurrentNumber = number
	return Advance(state)
}

// ParseTicket splits a ticket such as "A07" or "AA12" into prefix and number.
func ParseTicket(ticket string) (string, int, bool) {
	i := 0
	for i < len(ticket) && ticket[i] >= 'A' && ticket[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(ticket) {
		return "", 0, false
	}
	number, err := strconv.Atoi(ticket[i:])
	if err != nil || number < 1 || number > maxTicketNumber {
		return "", 0, false
	}
	return ticket[:i], number, true
}

func ticketInUse(state models.QueueState, ticket string) bool {
	for _, order := range state.Orders {
		if order.Ticket == ticket {
			return true
		}
	}
	return false
}

// CounterAfter reports whether counter (prefixA, numberA) is further along than
// (prefixB, numberB).
func CounterAfter(prefixA string, numberA int, prefixB string, numberB int) bool {
	if len(prefixA) != len(prefixB) {
		return len(prefixA) > len(prefixB)
	}
	if prefixA != prefixB {
		return prefixA > prefixB
	}
	return numberA > numberB
}

func ValidPrefix(prefix string) bool {
	if prefix == "" {
		return false
	}
	for _, r := range prefix {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func nextPrefix(prefix string) string {
	letters := []byte(prefix)
	for i := len(letters) - 1; i >= 0; i-- {
		if letters[i] < 'Z' {
			letters[i]++
			return string(letters)
		}
		letters[i] = 'A'
	}
	return "A" + string(letters)
}

func normalizeCounter(prefix string, number int) (string, int) {
	if !ValidPrefix(prefix) {
		prefix = models.InitialPrefix
	}
	if number < 1 {
		number = models.InitialNumber
	}
	return prefix, number
}
