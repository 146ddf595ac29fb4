package sqlinline

// QInsertUsageEvent records one AI usage deduction. The unique request_id
// makes re-delivery a no-op; callers inspect the affected-row count.
const QInsertUsageEvent = `--sql d6837fe6-1bc0-459b-983b-2897ff85950a
insert into ai_usage_events (project_id, request_id, model, credits, ts)
values ($1, $2, $3, $4, now())
on conflict (request_id) do nothing;
`

// QDeductCredits charges the active allowance period, refusing to exceed the
// granted budget. Zero rows affected means no open period or not enough
// credits left; callers distinguish the two with QCurrentAllowance.
const QDeductCredits = `--sql 49d2caf4-2771-4036-908e-e7685b07043c
update ai_allowance_periods
set credits_used = credits_used + $2
where project_id = $1
  and period_start <= now()
  and period_end > now()
  and credits_used + $2 <= credits_granted;
`

const QDeleteUsageEvent = `--sql 7b7f3a60-5f59-4a4f-9a3e-0f3dd2a1c44b
delete from ai_usage_events
where request_id = $1;
`

const QCurrentAllowance = `--sql 931c1fdd-3383-446d-984b-e3140a352212
select credits_granted, credits_used
from ai_allowance_periods
where project_id = $1
  and period_start <= now()
  and period_end > now();
`
