package telegram

import (
	"encoding/json"
	"strconv"
)

// WidgetFields приводит декодированное JSON-тело виджета к строковым полям.
// Числа должны быть декодированы как json.Number, чтобы не потерять точность id; null считается отсутствием поля.
func WidgetFields(body map[string]any) map[string]string {
	fields := make(map[string]string, len(body))
	for k, raw := range body {
		switch val := raw.(type) {
		case nil:
			continue
		case string:
			fields[k] = val
		case json.Number:
			fields[k] = val.String()
		case float64:
			fields[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			fields[k] = strconv.FormatBool(val)
		default:
			// вложенные объекты не участвуют в подписи виджета
			continue
		}
	}
	return fields
}
