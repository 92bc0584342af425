package presentation

import (
	"strings"
	"unicode/utf8"
)

const (
	// MaxBullets is the most bullets a content slide may carry.
	MaxBullets = 8
	// mergedBulletLimit is the longest a merged pair may be.
	mergedBulletLimit = 120
	bulletPrefix      = "• "
	bulletSeparator   = " | "
)

// GroupBullets reduces points to at most max entries by joining adjacent pairs with " | "
// while the joined text stays within 120 characters. Whatever cannot be merged away is
// truncated to max. Merged entries carry no bullet marker; kept entries get one.
func GroupBullets(points []string, max int) []string {
	if len(points) <= max {
		return points
	}
	excess := len(points) - max
	grouped := make([]string, 0, len(points))
	for i := 0; i < len(points); {
		if excess > 0 && i+1 < len(points) {
			merged := stripBullet(points[i]) + bulletSeparator + stripBullet(points[i+1])
			if utf8.RuneCountInString(merged) <= mergedBulletLimit {
				grouped = append(grouped, merged)
				i += 2
				excess--
				continue
			}
		}
		grouped = append(grouped, withBullet(points[i]))
		i++
	}
	if len(grouped) > max {
		grouped = grouped[:max]
	}
	return grouped
}

func stripBullet(s string) string {
	return strings.TrimLeft(s, "• ")
}

func withBullet(s string) string {
	if strings.HasPrefix(s, "•") {
		return s
	}
	return bulletPrefix + s
}
