package directory

import (
	"context"

	"github.com/google/uuid"
)

// Service answers read-only lookups of doctors and hospitals. Both missing
// cases surface as *apperr.NotFoundError.
type Service struct {
	doctors   DoctorRepository
	hospitals HospitalRepository
}

func NewService(doctors DoctorRepository, hospitals HospitalRepository) *Service {
	return &Service{doctors: doctors, hospitals: hospitals}
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetHospital(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return s.hospitals.GetByID(ctx, id)
}

func (s *Service) ListHospitalDoctors(ctx context.Context, hospitalID uuid.UUID, limit, offset int) ([]*Doctor, int, error) {
	if _, err := s.hospitals.GetByID(ctx, hospitalID); err != nil {
		return nil, 0, err
	}
	return s.doctors.ListByHospital(ctx, hospitalID, limit, offset)
}
