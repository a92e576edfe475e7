package lifecycle

import (
	"strconv"
	"strings"
	"unicode"
)

// DefaultDurationDays - срок, если из кода длительности не удалось вытащить число
const DefaultDurationDays = 6

// promoBonus - промо-таблица: оплачено N дней, доставляем M
var promoBonus = map[int]int{
	6:  7,
	15: 17,
}

// ParseDuration вытаскивает первое число из кода длительности ("6days" -> 6).
// ok == false означает, что код битый и возвращен DefaultDurationDays.
func ParseDuration(code string) (days int, ok bool) {
	code = strings.TrimSpace(code)

	start := strings.IndexFunc(code, unicode.IsDigit)
	if start < 0 {
		return DefaultDurationDays, false
	}

	end := start
	for end < len(code) && code[end] >= '0' && code[end] <= '9' {
		end++
	}

	n, err := strconv.Atoi(code[start:end])
	if err != nil || n <= 0 {
		return DefaultDurationDays, false
	}
	return n, true
}

// BonusDays применяет промо-таблицу к номинальному числу дней
func BonusDays(nominal int) int {
	if bonus, ok := promoBonus[nominal]; ok {
		return bonus
	}
	return nominal
}

// EffectiveDurationDays = номинал + бонус
func EffectiveDurationDays(code string) int {
	days, _ := ParseDuration(code)
	return BonusDays(days)
}
