package mcpserver

// MarkupContract describes the message markup and the card fields so LLM
// consumers can write cards that render as intended.
const MarkupContract = `# Cardsmith Card Contract

A card is a social post rendered to an image. The message body uses a tiny
highlight markup; every other field is plain text or an image source.

## Message markup

- ` + "`{text}`" + ` renders text with highlight A (yellow marker behind the text).
- ` + "`[text]`" + ` renders text with highlight B (bold, accent colour).
- Everything else is plain text. Line breaks are kept.

Rules:

1. Delimiters are removed from the output; there is no escape syntax.
2. Highlights do not nest. Inside ` + "`{…}`" + ` the characters ` + "`[`" + ` and ` + "`]`" + ` are
   literal text, and the other way round.
3. An unclosed region runs to the end of the message.
4. A stray closer outside a region (` + "`}`" + ` or ` + "`]`" + `) is literal text.
5. ` + "`{}`" + ` produces an empty highlight and renders nothing.

Example: ` + "`Shipped {the engine} today. [#launch]`" + `

## Fields

| field | type | notes |
|---|---|---|
| display_name | text, max 64 chars | also names exported files |
| avatar | image source | circle-cropped, optional |
| background | image source | cover-fitted behind the card, optional |
| message | markup, max 2000 chars | see above |
| likes | text, max 16 chars | e.g. ` + "`1.2K`" + ` |
| comments | text, max 16 chars | e.g. ` + "`348`" + ` |
| verified | boolean | draws a badge after the name |
| trophies | list of image sources, max 12 | 40 px icons; animated GIFs animate in GIF exports |

## Image sources

- ` + "`/assets/<name>`" + ` for images uploaded with the ` + "`upload_asset`" + ` tool (preferred).
- ` + "`data:image/png;base64,…`" + ` inline data URIs.
- ` + "`https://…`" + ` remote URLs. Depending on server policy they may be skipped
  or make the export fail, so upload them first.

## Export

- ` + "`export_still`" + ` returns a PNG at 3x resolution.
- ` + "`export_animated`" + ` returns a looping GIF (default 10 frames, 100 ms apart).
- Only one export runs at a time; a second request fails with a busy error.
`
