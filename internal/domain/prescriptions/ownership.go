package prescriptions

import "context"

// OwnerOf expone el doctorUserID de una receta.
// Se usa para evitar ciclos de imports entre módulos (prescriptions <-> sharegrants).
func (s *Service) OwnerOf(ctx context.Context, prescriptionID string) (string, error) {
	p, err := s.GetByID(ctx, prescriptionID)
	if err != nil {
		return "", err
	}
	return p.DoctorUserID, nil
}
