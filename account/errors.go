package account

import "takserver/apperrors"

var errAccountNotFound = apperrors.ErrAccountNotFound
