from api.models import Todo
=== END FILE ===