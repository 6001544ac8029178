package restaurant

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/restorank/restorank/core"
)

var (
	minRating  = int64(1)
	maxRating  = int64(5)
	ratingTag  = "rating"
	ratingText = "rating must be an integer between 1 and 5"
)

// InitValidators registers the restaurant validations and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(ratingTag, ratingValidation)
	core.RegisterCustomTranslation(validate, translator, ratingTag, ratingText)
}

func ratingValidation(fl validator.FieldLevel) bool {
	r := fl.Field().Int()
	return r >= minRating && r <= maxRating
}
