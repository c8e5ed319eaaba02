package expand

// stopWords are dropped from discovery text before frequency ranking
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "day": true,
	"get": true, "has": true, "him": true, "his": true, "how": true,
	"man": true, "new": true, "now": true, "old": true, "see": true,
	"two": true, "way": true, "who": true, "boy": true, "did": true,
	"its": true, "let": true, "put": true, "say": true, "she": true,
	"too": true, "use": true, "that": true, "with": true, "have": true,
	"this": true, "will": true, "your": true, "from": true, "they": true,
	"know": true, "want": true, "been": true, "good": true, "much": true,
	"some": true, "time": true, "very": true, "when": true, "come": true,
	"here": true, "just": true, "like": true, "long": true, "make": true,
	"many": true, "more": true, "only": true, "over": true, "such": true,
	"take": true, "than": true, "them": true, "well": true, "were": true,
	"what": true, "about": true, "after": true, "again": true, "could": true,
	"every": true, "first": true, "found": true, "great": true, "house": true,
	"large": true, "learn": true, "never": true, "other": true, "place": true,
	"right": true, "small": true, "sound": true, "spell": true, "still": true,
	"study": true, "their": true, "there": true, "these": true, "thing": true,
	"think": true, "three": true, "water": true, "where": true, "which": true,
	"world": true, "would": true, "write": true, "people": true, "because": true,
	"should": true, "through": true, "before": true, "between": true,
	"https": true, "http": true, "www": true, "com": true,
}
