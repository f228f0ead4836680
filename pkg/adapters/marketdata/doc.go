// Package marketdata provides market data vendor clients. Finnhub is the
// primary vendor; Yahoo Finance serves quotes and candles when no Finnhub
// API key is configured. All methods return prompt-ready text blocks.
package marketdata
