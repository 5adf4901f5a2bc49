package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

const maxJSONBodyBytes = 16 << 10

var errInvalidJSON = errors.New("invalid json body")

// requestValidator validates payloads and renders failures as English sentences that
// name fields by their JSON keys.
type requestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newRequestValidator() *requestValidator {
	english := en.New()
	uni := ut.New(english, english)
	trans, _ := uni.GetTranslator("en")

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	if err := entranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		panic(err)
	}

	return &requestValidator{validate: validate, trans: trans}
}

func (v *requestValidator) Struct(payload any) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}

	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	messages := make([]string, 0, len(validationErrs))
	for _, fieldErr := range validationErrs {
		messages = append(messages, fieldErr.Translate(v.trans))
	}

	return errors.New(strings.Join(messages, "; "))
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return errInvalidJSON
	}

	return nil
}
