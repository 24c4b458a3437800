// Package tghtml builds Telegram-HTML-safe text for the remote log channel.
//
// Everything sent with ParseMode="HTML" must be escaped first; the H type
// marks strings that already are.
package tghtml
