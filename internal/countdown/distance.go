package countdown

import (
	"fmt"
	"math"
	"time"
)

// 分単位のしきい値
const (
	minutesInDay           = 1440
	minutesInAlmostTwoDays = 2520
	minutesInMonth         = 43200
	minutesInTwoMonths     = 86400
)

// Distance はnowから見たtargetまでのおおよその距離を英語の相対表現で返す。
// 未来なら"in 3 days"、過去なら"2 hours ago"の形になる。
func Distance(now, target time.Time) string {
	phrase := distancePhrase(now, target)
	if target.After(now) {
		return "in " + phrase
	}
	return phrase + " ago"
}

// distancePhrase は向きを含まない距離の表現を返す。
func distancePhrase(now, target time.Time) string {
	earlier, later := now, target
	if later.Before(earlier) {
		earlier, later = later, earlier
	}

	seconds := int64(later.Sub(earlier) / time.Second)
	minutes := roundHalfUp(float64(seconds) / 60)

	switch {
	case minutes == 0:
		return "less than a minute"
	case minutes < 2:
		return "1 minute"
	case minutes < 45:
		return fmt.Sprintf("%d minutes", minutes)
	case minutes < 90:
		return "about 1 hour"
	case minutes < minutesInDay:
		return fmt.Sprintf("about %d hours", roundHalfUp(float64(minutes)/60))
	case minutes < minutesInAlmostTwoDays:
		return "1 day"
	case minutes < minutesInMonth:
		return fmt.Sprintf("%d days", roundHalfUp(float64(minutes)/minutesInDay))
	case minutes < minutesInTwoMonths:
		return plural("about %d month", roundHalfUp(float64(minutes)/minutesInMonth))
	}

	months := calendarMonths(earlier, later)
	if months < 12 {
		return plural("%d month", roundHalfUp(float64(minutes)/minutesInMonth))
	}

	years := months / 12
	switch rem := months % 12; {
	case rem < 3:
		return plural("about %d year", years)
	case rem < 9:
		return plural("over %d year", years)
	default:
		return plural("almost %d year", years+1)
	}
}

// calendarMonths はearlierからlaterまでに経過した暦上の月数を返す。
func calendarMonths(earlier, later time.Time) int64 {
	earlier, later = earlier.UTC(), later.UTC()
	months := int64(later.Year()-earlier.Year())*12 + int64(later.Month()-earlier.Month())

	// 月内の位置がearlierに届いていなければ1か月未満とみなす
	anniversary := earlier.AddDate(0, int(months), 0)
	if anniversary.After(later) {
		months--
	}
	return months
}

func roundHalfUp(x float64) int64 {
	return int64(math.Floor(x + 0.5))
}

// plural は数値が1以外の場合に単位を複数形にする。
func plural(format string, n int64) string {
	s := fmt.Sprintf(format, n)
	if n != 1 {
		s += "s"
	}
	return s
}
