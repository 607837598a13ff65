package postgres

import "github.com/viralforge/mesh/services/core-platform/M04-user-directory-service/internal/domain"

func toDomainUser(m userModel) domain.User {
	return domain.User{
		ID: m.UserID, Username: m.Username, Name: m.Name, Phone: m.Phone, Photo: m.Photo,
		DateOfBirth:     m.DateOfBirth,
		PhoneVisibility: domain.VisibilityMode(m.PhoneVisibility),
		BirthVisibility: domain.VisibilityMode(m.BirthVisibility),
		CreatedAt:       m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func mutationColumns(m domain.UserMutation) (map[string]any, bool) {
	updates := map[string]any{"updated_at": m.At}
	switch m.Field {
	case domain.FieldName:
		updates["name"] = m.Text
	case domain.FieldUsername:
		updates["username"] = m.Text
	case domain.FieldPhoto:
		updates["photo"] = m.Text
	case domain.FieldDateOfBirth:
		if m.DateOfBirth == nil {
			updates["date_of_birth"] = nil
		} else {
			updates["date_of_birth"] = *m.DateOfBirth
		}
	case domain.FieldPhoneVisibility:
		updates["phone_visibility"] = string(m.Visibility)
	case domain.FieldBirthVisibility:
		updates["birth_visibility"] = string(m.Visibility)
	default:
		return nil, false
	}
	return updates, true
}
