// Package logx is a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - Optional file output JSON-structured
//
// Remote (Telegram) log delivery is intentionally not handled here; the
// report package owns that sink, including escaping and rate limiting.
package logx
