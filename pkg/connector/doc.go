// Copyright 2024-2026 Aiku AI

// Package connector bridges Telegram and the Satori protocol.
//
// One Telegram login (bot or user account) is exposed as a Satori adapter:
// incoming messages and button presses become Satori events on the event
// stream, and Satori API calls (message.create, message.get,
// message.update, user.get, login.get) are executed against Telegram.
//
// The format conversion lives in two subpackages. telegramfmt decodes
// entity-annotated Telegram messages into generic element trees; satorifmt
// encodes element trees into the Telegram send operations that realize
// them. This package supplies the glue: the MTProto client with its peer
// and file caches, update handling, attachment fetching, and the Satori
// handler wiring.
//
// Media attached to incoming messages is referenced by internal: locators
// and served lazily through the API server's internal asset route, so
// nothing is downloaded unless a consumer asks for it.
package connector
