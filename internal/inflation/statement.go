package inflation

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var jaPrinter = message.NewPrinter(language.Japanese)

// FormatNumber renders v with ja-JP digit grouping and up to three
// fractional digits, e.g. 56487 → "56,487".
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NaN"
	}
	return jaPrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(3)))
}

// ToJapaneseEra converts a Gregorian year to its Japanese era name, using
// the new era for transition years. Years before 1868 have none.
func ToJapaneseEra(year int) (string, bool) {
	switch {
	case year >= 2019:
		return eraYear("令和", year-2018), true
	case year >= 1989:
		return eraYear("平成", year-1988), true
	case year >= 1926:
		return eraYear("昭和", year-1925), true
	case year >= 1912:
		return eraYear("大正", year-1911), true
	case year >= 1868:
		// 明治は元年表記なし
		return fmt.Sprintf("明治%d年", year-1867), true
	}
	return "", false
}

func eraYear(name string, n int) string {
	if n == 1 {
		return name + "元年"
	}
	return fmt.Sprintf("%s%d年", name, n)
}

// ComparisonItem is an everyday purchase used to make a result tangible
type ComparisonItem struct {
	Name  string
	Price float64
	Emoji string
	Unit  string
}

var comparisonItems = []ComparisonItem{
	{Name: "スタバのコーヒー", Price: 400, Emoji: "☕", Unit: "杯"},
	{Name: "マクドナルドのセット", Price: 700, Emoji: "🍔", Unit: "回"},
	{Name: "映画チケット", Price: 1800, Emoji: "🎬", Unit: "回"},
	{Name: "ランチ", Price: 1000, Emoji: "🍱", Unit: "回"},
	{Name: "カラオケ1時間", Price: 500, Emoji: "🎤", Unit: "時間"},
	{Name: "コンビニ弁当", Price: 500, Emoji: "🍙", Unit: "個"},
	{Name: "本", Price: 1500, Emoji: "📚", Unit: "冊"},
	{Name: "Netflix1ヶ月", Price: 1490, Emoji: "📺", Unit: "ヶ月"},
	{Name: "Spotify1ヶ月", Price: 980, Emoji: "🎵", Unit: "ヶ月"},
	{Name: "電車初乗り", Price: 150, Emoji: "🚃", Unit: "回"},
	{Name: "タクシー初乗り", Price: 500, Emoji: "🚕", Unit: "回"},
	{Name: "ガソリン1L", Price: 170, Emoji: "⛽", Unit: "L"},
}

// ComparisonMessage expresses a yen amount as a count of one everyday item,
// e.g. "☕ スタバのコーヒー12杯分！". Items are candidates when the amount buys
// between 1 and 99 of them; the one leaving the smallest remainder wins, the
// later item on ties.
func ComparisonMessage(yen float64) (string, bool) {
	var best *ComparisonItem
	for i := range comparisonItems {
		item := &comparisonItems[i]
		if yen < item.Price || yen >= item.Price*100 {
			continue
		}
		if best == nil || remainder(yen, item.Price) <= remainder(yen, best.Price) {
			best = item
		}
	}
	if best == nil {
		return "", false
	}
	count := math.Floor(yen / best.Price)
	return fmt.Sprintf("%s %s%d%s分！", best.Emoji, best.Name, int(count), best.Unit), true
}

func remainder(yen, price float64) float64 {
	ratio := yen / price
	return math.Abs(ratio - math.Floor(ratio))
}

var eraMessages = []struct {
	from, to int
	messages []string
}{
	{1940, 1950, []string{"戦後復興期の価値", "終戦直後の貴重なお金", "物資不足時代の価値"}},
	{1950, 1960, []string{"高度成長期前夜", "朝鮮戦争特需の時代", "復興への希望の時代"}},
	{1960, 1970, []string{"東京オリンピックの年代", "高度経済成長真っ只中", "三種の神器の時代"}},
	{1970, 1980, []string{"オイルショック前後", "万博ブームの時代", "列島改造論の時代"}},
	{1980, 1990, []string{"バブル前夜の価値", "ディスコブームの時代", "ジャパン・アズ・ナンバーワン"}},
	{1990, 2000, []string{"バブル真っ只中", "土地神話の時代", "ジュリアナ東京の時代"}},
	{2000, 2010, []string{"ITバブルの時代", "失われた10年の始まり", "デフレ突入期"}},
	{2010, 2020, []string{"リーマンショック後", "スマホ普及前夜", "アベノミクス期"}},
}

// EraMessage returns a short phrase describing the period of year. The
// phrase is picked by year so the same year always reads the same.
func EraMessage(year int) string {
	for _, e := range eraMessages {
		if year >= e.from && year < e.to {
			return e.messages[year%len(e.messages)]
		}
	}
	if year < 1940 {
		return "戦前の貴重な価値"
	}
	return "現代に近い時代"
}

// ResultStatement renders the yen result line, marked as a reference value
// when fallback rates were used.
func ResultStatement(result float64, usingFallback bool) string {
	s := FormatNumber(result) + "円"
	if usingFallback {
		s += "（参考値）"
	}
	return s
}

// ShareStatement builds the text posted by the share buttons
func ShareStatement(req ValidRequest, result float64, usingFallback bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "【%s】\n", EraMessage(req.Year))
	fmt.Fprintf(&b, "%s年の%s%s\n↓\n", req.YearText, FormatNumber(req.Amount), CurrencyLabel(req.Currency))
	fmt.Fprintf(&b, "今の価値で%s円\n", FormatNumber(result))
	if cmp, ok := ComparisonMessage(result); ok {
		b.WriteString("\n" + cmp + "\n")
	}
	b.WriteString("\n#今いくら")
	if usingFallback {
		b.WriteString("\n※参考値")
	}

	return b.String()
}
