package tui

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/frontend-bootcamp/reqstate/internal/mockapi"
)

// ConfirmDangerous shows a confirmation prompt for destructive actions.
func ConfirmDangerous(message string) (bool, error) {
	var result bool
	err := huh.NewConfirm().
		Title(message).
		Description("This action cannot be undone.").
		Affirmative("Yes, I'm sure").
		Negative("Cancel").
		Value(&result).
		Run()
	if err != nil {
		return false, err
	}
	return result, nil
}

// UserForm prompts for a new user, starting from the given values.
func UserForm(initial mockapi.NewUser) (mockapi.NewUser, error) {
	u := initial
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Placeholder("Ana García").
				Value(&u.Name).
				Validate(validateRequired),
			huh.NewInput().
				Title("Email").
				Placeholder("ana@email.com").
				Value(&u.Email).
				Validate(validateEmail),
		).Title("New user"),
	)
	if err := form.Run(); err != nil {
		return mockapi.NewUser{}, err
	}
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.TrimSpace(u.Email)
	return u, nil
}

// ProductForm prompts for changes to p. Only edited fields are set in the
// returned patch.
func ProductForm(p mockapi.Product) (mockapi.ProductPatch, error) {
	name := p.Name
	price := strconv.FormatFloat(p.Price, 'f', -1, 64)
	category := p.Category

	options := make([]huh.Option[string], len(mockapi.Categories))
	for i, c := range mockapi.Categories {
		options[i] = huh.NewOption(c, c)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Name").Value(&name).Validate(validateRequired),
			huh.NewInput().Title("Price").Value(&price).Validate(validatePrice),
			huh.NewSelect[string]().Title("Category").Options(options...).Value(&category),
		).Title("Edit product #" + strconv.Itoa(p.ID)),
	)
	if err := form.Run(); err != nil {
		return mockapi.ProductPatch{}, err
	}
	return diffProduct(p, name, price, category), nil
}

func diffProduct(p mockapi.Product, name, price, category string) mockapi.ProductPatch {
	var patch mockapi.ProductPatch
	if name = strings.TrimSpace(name); name != p.Name {
		patch.Name = &name
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(price), 64); err == nil && v != p.Price {
		patch.Price = &v
	}
	if category != p.Category {
		patch.Category = &category
	}
	return patch
}

func validateRequired(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}

func validateEmail(s string) error {
	if err := validateRequired(s); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(s)); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

func validatePrice(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 {
		return errors.New("enter a price of 0 or more")
	}
	return nil
}
