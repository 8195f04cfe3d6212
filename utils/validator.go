package utils

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	// Format validation errors
	var messages []string
	for _, err := range err.(validator.ValidationErrors) {
		field := strings.ToLower(err.Field())
		tag := err.Tag()
		param := err.Param()

		switch tag {
		case "required":
			messages = append(messages, field+" is required")
		case "min":
			messages = append(messages, field+" must be at least "+param)
		case "max":
			messages = append(messages, field+" must be at most "+param)
		case "email":
			messages = append(messages, field+" must be a valid email")
		case "hostname":
			messages = append(messages, field+" must be a valid hostname")
		case "url":
			messages = append(messages, field+" must be a valid URL")
		case "oneof":
			messages = append(messages, field+" must be one of: "+param)
		case "datetime":
			messages = append(messages, field+" must match format "+param)
		default:
			messages = append(messages, field+" is invalid")
		}
	}

	return errors.New(strings.Join(messages, ", "))
}
