package bot

import (
	"transrelay/pkg/langs"
	"transrelay/pkg/telegram"
)

const keyboardRowWidth = 3

// Keyboard lays out one flag button per language, three per row. The
// callback data is the language code.
func Keyboard(codes []string) *telegram.InlineKeyboardMarkup {
	kb := &telegram.InlineKeyboardMarkup{InlineKeyboard: [][]telegram.InlineKeyboardButton{}}
	var row []telegram.InlineKeyboardButton
	for _, c := range codes {
		code := langs.Normalize(c)
		if code == "" {
			continue
		}
		row = append(row, telegram.InlineKeyboardButton{Text: langs.Flag(code), CallbackData: code})
		if len(row) == keyboardRowWidth {
			kb.InlineKeyboard = append(kb.InlineKeyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb.InlineKeyboard = append(kb.InlineKeyboard, row)
	}
	return kb
}
