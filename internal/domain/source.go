package domain

// Source identifies where an imported row or price point came from.
type Source string

const (
	SourceTokenCSV    Source = "TOKEN_CSV"
	SourceWalletCSV   Source = "WALLET_CSV"
	SourceDexscreener Source = "DEXSCREENER"
	SourceLive        Source = "LIVE"
)

// QuoteUSD and QuoteBNB are the two quote currencies price points are stored in.
// BNB doubles as the bridge asset for cross-rate resolution.
const (
	QuoteUSD = "USD"
	QuoteBNB = "BNB"
)
